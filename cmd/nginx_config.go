package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/skywidgets/internal/static"
)

var nginxConfigCmd = &cobra.Command{
	Use:   "nginx-config BEAMLINE QUEUE_URL",
	Short: "Generate the nginx site for a beamline's queue monitor",
	Long: `Print an nginx server block that serves the queue monitor for BEAMLINE and
proxies API requests to QUEUE_URL.

Example:
  skywidgets nginx-config bl1 https://queue-bl1.bnl.gov:443
  skywidgets nginx-config bl1 https://queue-bl1.bnl.gov:443 -o bl1.conf
  skywidgets nginx-config bl1 https://queue-bl1.bnl.gov:443 --diff /etc/nginx/sites-enabled/bl1.conf`,
	Args: cobra.ExactArgs(2),
	RunE: runNginxConfig,
}

func init() {
	rootCmd.AddCommand(nginxConfigCmd)

	nginxConfigCmd.Flags().StringP("output", "o", "", "write the config to this file")
	nginxConfigCmd.Flags().String("diff", "", "compare with an existing config file instead of printing")
}

func runNginxConfig(cmd *cobra.Command, args []string) error {
	site, err := static.NewNginxSite(args[0], args[1])
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := site.Write(&buf); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("diff"); path != "" {
		current, err := os.ReadFile(path) //nolint:gosec // G304: user-chosen file
		if err != nil {
			return err
		}
		diff, changed := static.LineDiff(string(current), buf.String())
		if !changed {
			fmt.Fprintf(out, "%s is up to date\n", path)
			return nil
		}
		fmt.Fprint(out, diff)
		return nil
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // G306: nginx reads it
			return err
		}
		fmt.Fprintf(out, "Config written to %s\n", path)
		return nil
	}

	_, err = out.Write(buf.Bytes())
	return err
}
