// Package visualization renders reconstructed images and k-space maps into
// labelled grayscale panels and composite figures.
package visualization

import (
	"errors"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MRsources/Article-MAGMA24-RMRI/internal/models"
)

const (
	margin      = 6
	labelHeight = 16
)

// ErrEmptyFigure is returned when rendering a figure without panels.
var ErrEmptyFigure = errors.New("figure has no panels")

// Panel is one labelled image of a figure.
type Panel struct {
	Label string
	Data  *models.Grid
}

// Figure lays panels out row by row, Columns per row.
type Figure struct {
	// Columns is the number of panels per row
	Columns int

	// Scale is the nearest-neighbour magnification of every panel
	Scale int

	panels []Panel
}

// NewFigure returns an empty figure.
func NewFigure(columns, scale int) *Figure {
	if columns < 1 {
		columns = 1
	}
	if scale < 1 {
		scale = 1
	}
	return &Figure{Columns: columns, Scale: scale}
}

// AddPanel appends a panel. Panels fill the current row left to right.
func (f *Figure) AddPanel(label string, data *models.Grid) {
	f.panels = append(f.panels, Panel{Label: label, Data: data})
}

// Panels returns the panels in insertion order.
func (f *Figure) Panels() []Panel {
	return f.panels
}

// Render draws the figure. Cells are sized by the largest panel.
func (f *Figure) Render() (image.Image, error) {
	if len(f.panels) == 0 {
		return nil, ErrEmptyFigure
	}
	cellW, cellH := f.cellSize()
	rows := (len(f.panels) + f.Columns - 1) / f.Columns
	cols := min(f.Columns, len(f.panels))

	width := margin + cols*(cellW+margin)
	height := margin + rows*(labelHeight+cellH+margin)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(colornames.White), image.Point{}, draw.Src)

	for i, p := range f.panels {
		x := margin + (i%f.Columns)*(cellW+margin)
		y := margin + (i/f.Columns)*(labelHeight+cellH+margin)
		drawLabel(dst, p.Label, x, y+labelHeight-4)

		src := PanelImage(p.Data)
		b := src.Bounds()
		dr := image.Rect(x, y+labelHeight, x+b.Dx()*f.Scale, y+labelHeight+b.Dy()*f.Scale)
		draw.NearestNeighbor.Scale(dst, dr, src, b, draw.Src, nil)
	}
	return dst, nil
}

// cellSize returns the scaled size of the largest panel.
func (f *Figure) cellSize() (w, h int) {
	for _, p := range f.panels {
		// panels are displayed transposed
		w = max(w, p.Data.Rows*f.Scale)
		h = max(h, p.Data.Cols*f.Scale)
	}
	return w, h
}

// PanelImage converts g to 8-bit gray with min-max scaling. The grid is shown
// transposed with the origin at the lower left: rows run along x, columns
// along y from the bottom up. Non-finite values take the panel minimum.
func PanelImage(g *models.Grid) *image.Gray {
	t := g.Transpose()
	img := image.NewGray(image.Rect(0, 0, t.Cols, t.Rows))
	lo, hi, ok := t.FiniteRange()
	if !ok {
		return img
	}
	span := hi - lo

	for i := 0; i < t.Rows; i++ {
		y := t.Rows - 1 - i
		for j := 0; j < t.Cols; j++ {
			v := t.At(i, j)
			var level float64
			if !math.IsNaN(v) && !math.IsInf(v, 0) && span > 0 {
				level = (v - lo) / span
			}
			img.SetGray(j, y, color.Gray{Y: uint8(math.Round(level * 255))})
		}
	}
	return img
}

func drawLabel(dst draw.Image, label string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(colornames.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
