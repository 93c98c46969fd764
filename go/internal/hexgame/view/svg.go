package view

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
)

// RenderSVG writes the board as a standalone SVG document. Each playable
// cell is a flat-topped hexagon carrying its index in data-index so a page
// can map clicks back to gestures.
func RenderSVG(w io.Writer, bv BoardView) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.2f %.2f">`+"\n",
		bv.Width, bv.Height, bv.Width, bv.Height)
	fmt.Fprintf(bw, `<title>%s</title>`+"\n", html.EscapeString(bv.Status))

	for _, c := range bv.Cells {
		outline := board.Outline(c.X, c.Y)
		points := make([]string, len(outline))
		for i, p := range outline {
			points[i] = fmt.Sprintf("%.2f,%.2f", p.X, p.Y)
		}

		class := "hex"
		if c.Preview {
			class += " preview"
		}
		fmt.Fprintf(bw, `<polygon class="%s" data-index="%d" points="%s" fill="%s"/>`+"\n",
			class, c.Index, strings.Join(points, " "), html.EscapeString(string(c.Fill)))

		if c.Label != "" {
			fmt.Fprintf(bw, `<text x="%.2f" y="%.2f" text-anchor="middle" dominant-baseline="central" fill="#fff" font-weight="bold">%s</text>`+"\n",
				c.X+board.HexWidth/2, c.Y+board.HexHeight/2, html.EscapeString(c.Label))
		}
	}

	fmt.Fprintln(bw, `</svg>`)
	return bw.Flush()
}
