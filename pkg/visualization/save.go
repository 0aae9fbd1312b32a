package visualization

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/MRsources/Article-MAGMA24-RMRI/internal/models"
)

// Save renders the figure and writes it to path.
func (f *Figure) Save(path string) error {
	img, err := f.Render()
	if err != nil {
		return err
	}
	return SaveImage(img, path)
}

// SavePanel writes a single grid as a grayscale image magnified by scale.
func SavePanel(g *models.Grid, scale int, path string) error {
	src := PanelImage(g)
	if scale > 1 {
		b := src.Bounds()
		dst := image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		src = dst
	}
	return SaveImage(src, path)
}

// SaveImage encodes img as JPEG for .jpg/.jpeg paths and as PNG otherwise.
// Missing parent directories are created.
func SaveImage(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
