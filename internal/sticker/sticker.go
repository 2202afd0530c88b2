// Package sticker holds the pixel transforms applied to every sticker.
package sticker

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// BackgroundColor is the RGB value keyed out by MakeTransparent.
type BackgroundColor struct {
	R, G, B uint8
}

// White is the default background.
var White = BackgroundColor{R: 255, G: 255, B: 255}

// BackgroundFromRGB builds a BackgroundColor from an RGB triple.
func BackgroundFromRGB(rgb [3]uint8) BackgroundColor {
	return BackgroundColor{R: rgb[0], G: rgb[1], B: rgb[2]}
}

// MakeTransparent returns a non-premultiplied copy of img where every pixel
// whose RGB equals bg exactly has alpha 0. Other pixels keep their alpha.
func MakeTransparent(img image.Image, bg BackgroundColor) *image.NRGBA {
	out := ToNRGBA(img)

	pix := out.Pix
	for y := 0; y < out.Rect.Dy(); y++ {
		row := pix[y*out.Stride : y*out.Stride+out.Rect.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			if row[i] == bg.R && row[i+1] == bg.G && row[i+2] == bg.B {
				row[i+3] = 0
			}
		}
	}

	return out
}

// ToNRGBA copies img into a fresh *image.NRGBA anchored at the origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()*4], src.Pix[si:si+b.Dx()*4])
		}
		return out
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return out
}

// Resize scales img to exactly width x height with Catmull-Rom resampling.
func Resize(img *image.NRGBA, width, height int) *image.NRGBA {
	if img.Rect.Dx() == width && img.Rect.Dy() == height {
		return img
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Rect, img, img.Rect, draw.Src, nil)
	return out
}

// Decode reads a PNG, JPEG or GIF image.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("decode image: empty data")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}
