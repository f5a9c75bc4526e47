package images

import (
	"errors"
	"image"
	"image/draw"
)

// CropSquare copies a size x size square centered at c out of frame. The
// square is shifted to stay inside the frame and shrunk when the frame is
// smaller; the result is at least 1x1. It returns the copy and the source rectangle.
func CropSquare(frame *image.RGBA, c image.Point, size int) (*image.RGBA, image.Rectangle, error) {
	if frame == nil || frame.Rect.Empty() {
		return nil, image.Rectangle{}, errors.New("empty frame")
	}
	b := frame.Bounds()
	size = max(1, min(size, b.Dx(), b.Dy()))
	x0 := c.X - size/2
	y0 := c.Y - size/2
	x0 = max(b.Min.X, min(x0, b.Max.X-size))
	y0 = max(b.Min.Y, min(y0, b.Max.Y-size))
	r := image.Rect(x0, y0, x0+size, y0+size)
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), frame, r.Min, draw.Src)
	return out, r, nil
}

// Thumbnail crops the central square of frame and scales it to side x side.
func Thumbnail(frame *image.RGBA, side int) image.Image {
	if frame == nil || frame.Rect.Empty() {
		return nil
	}
	b := frame.Bounds()
	center := image.Pt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
	sq, _, err := CropSquare(frame, center, min(b.Dx(), b.Dy()))
	if err != nil {
		return nil
	}
	return ScaleToFit(sq, side, side)
}
