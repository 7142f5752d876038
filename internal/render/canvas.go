package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/xxxsen/papercast/internal/markup"
)

type fontKind int

const (
	fontRegular fontKind = iota
	fontBold
	fontMono
)

type align int

const (
	alignLeft align = iota
	alignCenter
)

var (
	colorBackground = color.RGBA{R: 0x1e, G: 0x1e, B: 0x1e, A: 0xff}
	colorText       = color.White
	colorMuted      = color.RGBA{R: 0xaa, G: 0xaa, B: 0xaa, A: 0xff}
	colorHighlight  = color.RGBA{R: 0xfb, G: 0xbc, B: 0x05, A: 0x55}
	colorPanel      = color.RGBA{R: 0x2d, G: 0x2d, B: 0x2d, A: 0xff}

	namedColors = map[string]color.Color{
		"green":  color.RGBA{R: 0x34, G: 0xa8, B: 0x53, A: 0xff},
		"red":    color.RGBA{R: 0xea, G: 0x43, B: 0x35, A: 0xff},
		"blue":   color.RGBA{R: 0x42, G: 0x85, B: 0xf4, A: 0xff},
		"purple": color.RGBA{R: 0x9c, G: 0x27, B: 0xb0, A: 0xff},
		"yellow": color.RGBA{R: 0xfb, G: 0xbc, B: 0x05, A: 0xff},
	}
)

func namedColor(name string, def color.Color) color.Color {
	if c, ok := namedColors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return def
}

type fontSet struct {
	regular *truetype.Font
	bold    *truetype.Font
	mono    *truetype.Font
}

// loadFonts uses the TTF at path for prose when given, the Go fonts otherwise.
func loadFonts(path string) (*fontSet, error) {
	set := &fontSet{}
	var err error
	if set.regular, err = truetype.Parse(goregular.TTF); err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	if set.bold, err = truetype.Parse(gobold.TTF); err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	if set.mono, err = truetype.Parse(gomono.TTF); err != nil {
		return nil, fmt.Errorf("parse mono font: %w", err)
	}
	if path == "" {
		return set, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font file: %w", err)
	}
	custom, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse font file: %w", err)
	}
	set.regular, set.bold = custom, custom
	return set, nil
}

type faceKey struct {
	kind fontKind
	size float64
}

type canvas struct {
	dc    *gg.Context
	w, h  float64
	fonts *fontSet
	faces map[faceKey]font.Face
}

func (r *Renderer) newCanvas() *canvas {
	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	dc.SetColor(colorBackground)
	dc.Clear()
	return &canvas{
		dc:    dc,
		w:     float64(r.opts.Width),
		h:     float64(r.opts.Height),
		fonts: r.fonts,
		faces: map[faceKey]font.Face{},
	}
}

func (c *canvas) save(path string) error {
	return c.dc.SavePNG(path)
}

// px scales a length given for a 1080 pixel tall frame.
func (c *canvas) px(v float64) float64 {
	return v * c.h / DefaultHeight
}

func (c *canvas) setFont(kind fontKind, size float64) {
	key := faceKey{kind: kind, size: math.Max(1, math.Round(c.px(size)))}
	face, ok := c.faces[key]
	if !ok {
		f := c.fonts.regular
		switch kind {
		case fontBold:
			f = c.fonts.bold
		case fontMono:
			f = c.fonts.mono
		}
		face = truetype.NewFace(f, &truetype.Options{Size: key.size, DPI: 72, Hinting: font.HintingNone})
		c.faces[key] = face
	}
	c.dc.SetFontFace(face)
}

func (c *canvas) title(s string) {
	s = markup.Clean(s)
	if s == "" {
		return
	}
	c.setFont(fontBold, 54)
	c.dc.SetColor(colorText)
	c.dc.DrawStringWrapped(s, c.w/2, c.px(60), 0.5, 0, c.w*0.9, 1.2, gg.AlignCenter)
}

// paragraph draws wrapped text. For alignCenter (x, y) is the block center,
// for alignLeft it is the top left corner. It returns the block height.
func (c *canvas) paragraph(s string, x, y, width, size float64, kind fontKind, col color.Color, a align) float64 {
	s = markup.Clean(s)
	if s == "" {
		return 0
	}
	c.setFont(kind, size)
	c.dc.SetColor(col)
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		wrapped := c.dc.WordWrap(para, width)
		if len(wrapped) == 0 {
			wrapped = []string{""}
		}
		lines = append(lines, wrapped...)
	}
	text := strings.Join(lines, "\n")
	height := float64(len(lines)) * c.dc.FontHeight() * 1.3
	switch a {
	case alignCenter:
		c.dc.DrawStringWrapped(text, x, y, 0.5, 0.5, width, 1.3, gg.AlignCenter)
	default:
		c.dc.DrawStringWrapped(text, x, y, 0, 0, width, 1.3, gg.AlignLeft)
	}
	return height
}

func (c *canvas) box(x, y, w, h float64, fill, stroke color.Color) {
	c.dc.DrawRoundedRectangle(x, y, w, h, c.px(12))
	if fill != nil {
		c.dc.SetColor(fill)
		c.dc.FillPreserve()
	}
	c.dc.SetColor(stroke)
	c.dc.SetLineWidth(c.px(3))
	c.dc.Stroke()
}

// textBox draws s inside a box centered at (cx, cy).
func (c *canvas) textBox(s string, cx, cy, w, h float64, stroke color.Color) {
	c.box(cx-w/2, cy-h/2, w, h, colorPanel, stroke)
	c.paragraph(s, cx, cy, w*0.9, 28, fontRegular, colorText, alignCenter)
}

func (c *canvas) arrow(x1, y1, x2, y2 float64, col color.Color, label string) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(c.px(4))
	c.dc.DrawLine(x1, y1, x2, y2)
	c.dc.Stroke()
	angle := math.Atan2(y2-y1, x2-x1)
	head := c.px(22)
	c.dc.MoveTo(x2, y2)
	c.dc.LineTo(x2-head*math.Cos(angle-math.Pi/7), y2-head*math.Sin(angle-math.Pi/7))
	c.dc.LineTo(x2-head*math.Cos(angle+math.Pi/7), y2-head*math.Sin(angle+math.Pi/7))
	c.dc.ClosePath()
	c.dc.Fill()
	if label = markup.Clean(label); label != "" {
		c.setFont(fontRegular, 24)
		c.dc.SetColor(colorMuted)
		c.dc.DrawStringAnchored(label, (x1+x2)/2, (y1+y2)/2-c.px(14), 0.5, 1)
	}
}

// image draws the picture at path fitted inside the box, or a placeholder
// box labelled failLabel when it cannot be loaded. It reports whether the
// picture was drawn.
func (c *canvas) image(path, failLabel string, x, y, w, h float64) bool {
	img, err := gg.LoadImage(path)
	if err != nil {
		if failLabel != "" {
			c.placeholder(failLabel, x, y, w, h)
		}
		return false
	}
	c.dc.DrawImageAnchored(fit(img, int(w), int(h)), int(x+w/2), int(y+h/2), 0.5, 0.5)
	return true
}

func (c *canvas) placeholder(label string, x, y, w, h float64) {
	c.dc.SetDash(c.px(10), c.px(8))
	c.box(x, y, w, h, nil, colorMuted)
	c.dc.SetDash()
	c.setFont(fontRegular, 26)
	c.dc.SetColor(colorMuted)
	c.dc.DrawStringAnchored(label, x+w/2, y+h/2, 0.5, 0.5)
}

// fit scales img to fit within w×h keeping its aspect ratio.
func fit(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || w <= 0 || h <= 0 {
		return img
	}
	scale := math.Min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	dw, dh := max(int(float64(b.Dx())*scale), 1), max(int(float64(b.Dy())*scale), 1)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
