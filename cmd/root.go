package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/skywidgets/internal/config"
	"github.com/zjrosen/skywidgets/internal/log"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply does not race the input loop.
	_ = lipgloss.HasDarkBackground()
}

const localConfigPath = ".skywidgets/config.yaml"

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
	cfgErr    error
)

var rootCmd = &cobra.Command{
	Use:   "skywidgets",
	Short: "Live plots of Bluesky runs in the terminal",
	Long: `skywidgets follows Bluesky runs as they are acquired and keeps one figure
per plotted (x, y, stream), with the most recent runs drawn as lines.

It also ships a mock queue server and the static file helpers used when
developing queue monitor front-ends.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/skywidgets/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also SKYWIDGETS_DEBUG)")
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("skywidgets")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .skywidgets/config.yaml (current directory)
		// 2. ~/.config/skywidgets/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else if dir := config.DefaultDir(); dir != "" {
			viper.AddConfigPath(dir)
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// First run: write the commented default so there is something to edit.
			path := defaultConfigPath()
			if writeErr := config.WriteDefaultConfig(path); writeErr == nil {
				viper.SetConfigFile(path)
				_ = viper.ReadInConfig()
			}
		} else {
			cfgErr = fmt.Errorf("reading config: %w", err)
			return
		}
	}

	cfg, cfgErr = config.Load(viper.GetViper())
}

func defaultConfigPath() string {
	if dir := config.DefaultDir(); dir != "" {
		return filepath.Join(dir, "config.yaml")
	}
	return localConfigPath
}

// configPath is the file viewer settings are saved to.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return defaultConfigPath()
}

func debugEnabled() bool {
	return debugFlag || cfg.Debug || os.Getenv("SKYWIDGETS_DEBUG") != ""
}

// logLevel is debug when debugging is enabled, otherwise SKYWIDGETS_LOG_LEVEL
// or info.
func logLevel() log.Level {
	if debugEnabled() {
		return log.LevelDebug
	}
	return log.ParseLevel(os.Getenv("SKYWIDGETS_LOG_LEVEL"))
}

// initStderrLog sends log output to stderr for the non-interactive commands.
func initStderrLog() {
	log.InitWriter(os.Stderr, logLevel())
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// loadedConfig returns the configuration or the error hit while loading it.
func loadedConfig() (config.Config, error) {
	if cfgErr != nil {
		return config.Config{}, cfgErr
	}
	return cfg, nil
}
