package visualization

import (
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/MRsources/Article-MAGMA24-RMRI/internal/models"
)

func ramp(rows, cols int) *models.Grid {
	g := models.NewGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = float64(i)
	}
	return g
}

// TestPanelOrientation verifies the grid is shown transposed with the origin
// at the lower left
func TestPanelOrientation(t *testing.T) {
	g := models.NewGrid(2, 3)
	g.Set(1, 0, 5)
	img := PanelImage(g)

	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 3 {
		t.Fatalf("Expected 2x3 image, got %dx%d", b.Dx(), b.Dy())
	}
	if got := img.GrayAt(1, 2).Y; got != 255 {
		t.Errorf("Expected max at (1, 2), got %d", got)
	}
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("Expected min at (0, 0), got %d", got)
	}
}

// TestPanelNonFinite verifies -Inf and NaN map to the panel minimum
func TestPanelNonFinite(t *testing.T) {
	g := &models.Grid{Rows: 2, Cols: 2, Data: []float64{math.Inf(-1), 1, 3, math.NaN()}}
	img := PanelImage(g)

	if got := img.GrayAt(0, 1).Y; got != 0 {
		t.Errorf("Expected -Inf as 0, got %d", got)
	}
	if got := img.GrayAt(1, 0).Y; got != 0 {
		t.Errorf("Expected NaN as 0, got %d", got)
	}
	if got := img.GrayAt(1, 1).Y; got != 255 {
		t.Errorf("Expected 255 for the maximum, got %d", got)
	}

	// all non-finite leaves a black panel
	empty := PanelImage(&models.Grid{Rows: 1, Cols: 1, Data: []float64{math.Inf(-1)}})
	if empty.GrayAt(0, 0).Y != 0 {
		t.Error("Expected a black panel for all non-finite data")
	}
}

// TestFigureDimensions verifies the layout follows panel count and scale
func TestFigureDimensions(t *testing.T) {
	f := NewFigure(5, 2)
	for i := 0; i < 10; i++ {
		f.AddPanel(string(rune('a'+i))+")", ramp(8, 8))
	}
	img, err := f.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	wantW := margin + 5*(16+margin)
	wantH := margin + 2*(labelHeight+16+margin)
	if b := img.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Errorf("Expected %dx%d figure, got %dx%d", wantW, wantH, b.Dx(), b.Dy())
	}
	if len(f.Panels()) != 10 {
		t.Errorf("Expected 10 panels, got %d", len(f.Panels()))
	}
}

func TestEmptyFigure(t *testing.T) {
	_, err := NewFigure(5, 1).Render()
	if !errors.Is(err, ErrEmptyFigure) {
		t.Errorf("Expected ErrEmptyFigure, got %v", err)
	}
}

// TestSave verifies PNG and JPEG output decode back with the expected size
func TestSave(t *testing.T) {
	dir := t.TempDir()

	f := NewFigure(2, 3)
	f.AddPanel("a)", ramp(4, 6))
	f.AddPanel("b)", ramp(4, 6))

	for _, name := range []string{"figure.png", "nested/figure.jpg"} {
		path := filepath.Join(dir, name)
		if err := f.Save(path); err != nil {
			t.Fatalf("Failed to save %s: %v", name, err)
		}
		img := decode(t, path)
		wantW := margin + 2*(12+margin)
		if img.Bounds().Dx() != wantW {
			t.Errorf("%s: expected width %d, got %d", name, wantW, img.Bounds().Dx())
		}
	}

	panel := filepath.Join(dir, "panel.png")
	if err := SavePanel(ramp(4, 6), 2, panel); err != nil {
		t.Fatalf("Failed to save panel: %v", err)
	}
	if b := decode(t, panel).Bounds(); b.Dx() != 8 || b.Dy() != 12 {
		t.Errorf("Expected 8x12 panel, got %dx%d", b.Dx(), b.Dy())
	}
}

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	return img
}
