package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	defaultSVGSize = 512
	maxSVGSize     = 2048
)

// Verify fails unless r holds an image one of the registered decoders accepts.
func Verify(r io.Reader) error {
	if _, _, err := image.Decode(r); err != nil {
		return fmt.Errorf("invalid image: %w", err)
	}
	return nil
}

// SVGToPNG rasterizes an SVG document at its view box size.
func SVGToPNG(r io.Reader) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(r, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}
	w, h := icon.ViewBox.W, icon.ViewBox.H
	if w <= 0 || h <= 0 {
		w, h = defaultSVGSize, defaultSVGSize
	}
	if scale := maxSVGSize / max(w, h); scale < 1 {
		w, h = w*scale, h*scale
	}
	iw, ih := max(int(w), 1), max(int(h), 1)
	icon.SetTarget(0, 0, float64(iw), float64(ih))
	rgba := image.NewRGBA(image.Rect(0, 0, iw, ih))
	scanner := rasterx.NewScannerGV(iw, ih, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(iw, ih, scanner), 1)
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
