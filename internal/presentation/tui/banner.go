package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	`                                   _   _                      `,
	`  _ __  _ __ ___  _ __ ___  _ __ | |_| | ___   ___  _ __ ___  `,
	` | '_ \| '__/ _ \| '_ ' _ \| '_ \| __| |/ _ \ / _ \| '_ ' _ \ `,
	` | |_) | | | (_) | | | | | | |_) | |_| | (_) | (_) | | | | | |`,
	` | .__/|_|  \___/|_| |_| |_| .__/ \__|_|\___/ \___/|_| |_| |_|`,
	` |_|                       |_|                                `,
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6", "#fb7185"}

// PrintBanner writes the ASCII art banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(out)
	for i, line := range bannerLines {
		fmt.Fprintln(out, out.String(line).Foreground(out.Color(bannerColors[i%len(bannerColors)])))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(out, out.String("  v"+v).Faint())
	}
	fmt.Fprintln(out)
}
