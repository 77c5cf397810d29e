package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`  __ _               _        _ _    `, "#818cf8"},
	{` / _| | _____      _| |_ __ _| | | __`, "#a78bfa"},
	{`| |_| |/ _ \ \ /\ / / __/ _' | | |/ /`, "#c084fc"},
	{`|  _| | (_) \ V  V /| || (_| | |   < `, "#e879f9"},
	{`|_| |_|\___/ \_/\_/  \__\__,_|_|_|\_\`, "#f472b6"},
}

// PrintBanner writes the flowtalk banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.NewOutput(w).ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
