// Package render produces the per-image comparison figure: one grayscale
// panel per pipeline snapshot, labeled and composed side by side into a PNG.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	panelSize   = 256
	labelHeight = 18
	panelGap    = 4
)

// Panel is one labeled slice in the comparison figure. Slice values are
// expected in [0, 1], rows indexed [y][x].
type Panel struct {
	Title string
	Slice [][]float64
}

// WriteComparison renders the panels side by side and writes a PNG at path,
// creating parent directories as needed.
func WriteComparison(path string, panels []Panel) error {
	if len(panels) == 0 {
		return fmt.Errorf("no panels to render")
	}

	width := len(panels)*panelSize + (len(panels)-1)*panelGap
	canvas := image.NewRGBA(image.Rect(0, 0, width, panelSize+labelHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for i, p := range panels {
		x0 := i * (panelSize + panelGap)
		tile := image.Rect(x0, labelHeight, x0+panelSize, labelHeight+panelSize)
		draw.BiLinear.Scale(canvas, tile, grayImage(p.Slice), grayBounds(p.Slice), draw.Src, nil)
		drawLabel(canvas, p.Title, x0)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create figure directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create figure: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, canvas); err != nil {
		return fmt.Errorf("encode figure: %w", err)
	}
	return nil
}

func grayBounds(slice [][]float64) image.Rectangle {
	h := len(slice)
	w := 0
	if h > 0 {
		w = len(slice[0])
	}
	return image.Rect(0, 0, w, h)
}

func grayImage(slice [][]float64) *image.Gray {
	bounds := grayBounds(slice)
	img := image.NewGray(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			v := slice[y][x]
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v * 255)})
		}
	}
	return img
}

func drawLabel(dst *image.RGBA, text string, x0 int) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	x := x0 + (panelSize-textWidth)/2
	if x < x0 {
		x = x0
	}
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(13)},
	}
	drawer.DrawString(text)
}
