package static

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineDiff(t *testing.T) {
	out, changed := LineDiff("listen 80;\nroot /a;\nindex x;\n", "listen 80;\nroot /b;\nindex x;\n")
	require.True(t, changed)
	require.Contains(t, out, "  listen 80;\n")
	require.Contains(t, out, "- root /a;\n")
	require.Contains(t, out, "+ root /b;\n")
	require.Contains(t, out, "  index x;\n")
	require.Equal(t, 4, strings.Count(out, "\n"))
}

func TestLineDiff_Identical(t *testing.T) {
	out, changed := LineDiff("a\nb", "a\nb")
	require.False(t, changed)
	require.Equal(t, "  a\n  b\n", out)
}
