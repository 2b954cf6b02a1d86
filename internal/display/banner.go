package display

import (
	_ "embed"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerArt string

// RenderBanner lays the banner art out for a terminal of the given
// width: the block is centred when it fits and left aligned otherwise.
// width <= 0 means the output is not a terminal, so the art is returned
// without styling or padding.
func RenderBanner(width int) string {
	art := strings.Split(strings.TrimRight(bannerArt, "\n"), "\n")

	block := 0
	for _, l := range art {
		block = max(block, len(l))
	}
	indent := ""
	if width > block {
		indent = strings.Repeat(" ", (width-block)/2)
	}

	var b strings.Builder
	for _, l := range art {
		if width <= 0 {
			b.WriteString(l)
		} else {
			b.WriteString(indent + BannerStyle.Render(l))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// stdoutWidth reports the column count of stdout, or 0 when stdout is not
// a terminal.
func stdoutWidth() int {
	fd := os.Stdout.Fd()
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}
