package api

import (
	"io"

	"github.com/fogleman/gg"

	"snake-arena/internal/game"
)

// Preview rendering: a small raster view of a room snapshot for the ops
// surface. Not part of the game protocol; clients render from snapshots.

const previewCellPx = 12

var snakePalette = [][3]float64{
	{0.22, 0.69, 0.34}, // green
	{0.25, 0.47, 0.85}, // blue
	{0.91, 0.56, 0.13}, // orange
	{0.62, 0.32, 0.77}, // purple
	{0.85, 0.75, 0.20}, // yellow
	{0.20, 0.72, 0.72}, // teal
}

// renderPreview draws the snapshot to PNG: dark background, faint grid,
// food as red dots, each snake in its palette color with a brighter head.
func renderPreview(w io.Writer, snap game.StateSnapshot, grid game.Grid) error {
	width, height := grid.Width, grid.Height

	dc := gg.NewContext(width*previewCellPx, height*previewCellPx)

	dc.SetRGB(0.10, 0.10, 0.12)
	dc.Clear()

	dc.SetRGB(0.16, 0.16, 0.19)
	dc.SetLineWidth(1)
	for x := 0; x <= width; x++ {
		dc.DrawLine(float64(x*previewCellPx), 0, float64(x*previewCellPx), float64(height*previewCellPx))
		dc.Stroke()
	}
	for y := 0; y <= height; y++ {
		dc.DrawLine(0, float64(y*previewCellPx), float64(width*previewCellPx), float64(y*previewCellPx))
		dc.Stroke()
	}

	dc.SetRGB(0.86, 0.22, 0.22)
	for _, f := range snap.Food {
		cx := float64(f.X*previewCellPx) + previewCellPx/2
		cy := float64(f.Y*previewCellPx) + previewCellPx/2
		dc.DrawCircle(cx, cy, previewCellPx*0.35)
		dc.Fill()
	}

	for i, s := range snap.Snakes {
		if len(s.Body) == 0 {
			continue
		}
		col := snakePalette[i%len(snakePalette)]
		for j, c := range s.Body {
			if j == 0 {
				// Head pops against the body.
				dc.SetRGB(min1(col[0]+0.25), min1(col[1]+0.25), min1(col[2]+0.25))
			} else {
				dc.SetRGB(col[0], col[1], col[2])
			}
			dc.DrawRectangle(float64(c.X*previewCellPx)+1, float64(c.Y*previewCellPx)+1, previewCellPx-2, previewCellPx-2)
			dc.Fill()
		}
	}

	return dc.EncodePNG(w)
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
