package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

var (
	colorBox   = color.RGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff}
	colorPhone = color.RGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}
	colorOpen  = color.RGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}
	colorShade = color.RGBA{A: 0xb0}
)

const boxStroke = 2

// Status is the per-frame measurement drawn in the header line.
type Status struct {
	EyeOpenness    float64
	HasEyeOpenness bool
	Threshold      float64
	PhoneLabel     string
}

// Annotate returns a copy of src with detection boxes and an eye status line.
// src is never modified.
func Annotate(src *image.RGBA, dets []distraction.Detection, st Status) *image.RGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	for _, d := range dets {
		c := colorBox
		if distraction.PhoneDetected([]distraction.Detection{d}, st.PhoneLabel) {
			c = colorPhone
		}
		r := d.Box.Intersect(b)
		if r.Empty() {
			continue
		}
		strokeRect(dst, r, c)
		label(dst, image.Pt(r.Min.X, r.Min.Y), fmt.Sprintf("%s %.2f", d.Label, d.Confidence), c)
	}

	line := "EAR: n/a"
	c := colorBox
	if st.HasEyeOpenness {
		line = fmt.Sprintf("EAR: %.2f", st.EyeOpenness)
		if st.EyeOpenness < st.Threshold {
			line += " (closed)"
			c = colorPhone
		} else {
			c = colorOpen
		}
	}
	label(dst, image.Pt(b.Min.X+4, b.Min.Y+basicfont.Face7x13.Height+4), line, c)
	return dst
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxStroke),
		image.Rect(r.Min.X, r.Max.Y-boxStroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxStroke, r.Max.Y),
		image.Rect(r.Max.X-boxStroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), u, image.Point{}, draw.Src)
	}
}

// label draws text on a dark strip whose bottom-left corner is at pt.
func label(dst *image.RGBA, pt image.Point, text string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	w := d.MeasureString(text).Ceil()
	h := face.Height
	if pt.Y-h < dst.Rect.Min.Y {
		pt.Y = dst.Rect.Min.Y + h
	}
	bg := image.Rect(pt.X, pt.Y-h, pt.X+w+2, pt.Y+2).Intersect(dst.Rect)
	draw.Draw(dst, bg, image.NewUniform(colorShade), image.Point{}, draw.Over)
	d.Dot = fixed.P(pt.X+1, pt.Y-face.Descent+1)
	d.DrawString(text)
}
