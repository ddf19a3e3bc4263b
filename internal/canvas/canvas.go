// Package canvas renders collected turtle primitives to an SVG document.
// The turtle draws in unbounded logical coordinates with +Y up; the canvas
// centers the origin in the viewport and flips the vertical axis.
package canvas

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/turtle"
)

// SVG renders the primitives in order into a width x height viewport. A
// Clear primitive drops everything before it, exactly like the screen.
func SVG(prims []turtle.Primitive, width, height int, background string) string {
	start := 0
	for i, p := range prims {
		if p.Kind == turtle.KindClear {
			start = i + 1
		}
	}
	cx, cy := float64(width)/2, float64(height)/2

	var sb strings.Builder
	fmt.Fprintf(&sb,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&sb, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", background)
	for _, p := range prims[start:] {
		color := turtle.Palette[p.Color&15]
		switch p.Kind {
		case turtle.KindLine:
			fmt.Fprintf(&sb,
				`  <line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s" stroke-linecap="round"/>`+"\n",
				coord(cx+p.X1), coord(cy-p.Y1), coord(cx+p.X2), coord(cy-p.Y2), color, coord(p.Size))
		case turtle.KindCircle:
			fmt.Fprintf(&sb,
				`  <circle cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-width="%s"/>`+"\n",
				coord(cx+p.X1), coord(cy-p.Y1), coord(p.R), color, coord(p.Size))
		case turtle.KindDot:
			fmt.Fprintf(&sb,
				`  <circle cx="%s" cy="%s" r="%s" fill="%s"/>`+"\n",
				coord(cx+p.X1), coord(cy-p.Y1), coord(p.R), color)
		}
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

// coord renders a coordinate to at most three decimals, trimmed, so rotated
// headings don't leak float noise into the document.
func coord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}
