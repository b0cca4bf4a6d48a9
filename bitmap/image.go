package bitmap

import (
	"fmt"
	"image"
	"image/color"
)

// ToImage converts a bitmap into a standard library image for encoding.
// The bitmap is read, not released.
func ToImage(b Bitmap) (image.Image, error) {
	switch bm := b.(type) {
	case *BGRA8888Bitmap:
		return bgraToImage(bm), nil
	case *ARGB2101010Bitmap:
		return packedToImage(bm), nil
	case *RGBAF16Bitmap:
		return halfToImage(bm), nil
	case *YCbCrBitmap:
		return ycbcrToImage(bm), nil
	default:
		return nil, fmt.Errorf("bitmap: cannot convert %T to image", b)
	}
}

func bgraToImage(b *BGRA8888Bitmap) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.W, b.H))
	for i, px := range b.Data.Pix() {
		o := i * 4
		img.Pix[o+0] = px[2]
		img.Pix[o+1] = px[1]
		img.Pix[o+2] = px[0]
		img.Pix[o+3] = px[3]
	}
	return img
}

// expand10 widens a 10-bit channel to 16 bits by bit replication
func expand10(v uint32) uint16 {
	v &= 0x3ff
	return uint16(v<<6 | v>>4)
}

func packedToImage(b *ARGB2101010Bitmap) *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, b.W, b.H))
	for i, px := range b.Data.Pix() {
		img.SetNRGBA64(i%b.W, i/b.W, color.NRGBA64{
			R: expand10(px >> 20),
			G: expand10(px >> 10),
			B: expand10(px),
			A: uint16(px>>30) * 0x5555,
		})
	}
	return img
}

func clampUnit16(f float32) uint16 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 0xffff
	default:
		return uint16(f*0xffff + 0.5)
	}
}

func halfToImage(b *RGBAF16Bitmap) *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, b.W, b.H))
	for i, px := range b.Data.Pix() {
		img.SetNRGBA64(i%b.W, i/b.W, color.NRGBA64{
			R: clampUnit16(px[0].Float32()),
			G: clampUnit16(px[1].Float32()),
			B: clampUnit16(px[2].Float32()),
			A: clampUnit16(px[3].Float32()),
		})
	}
	return img
}

// BT.709 luma coefficients; capture caps pin the 709 matrix for YCbCr
const (
	kr709 = 0.2126
	kb709 = 0.0722
	kg709 = 1 - kr709 - kb709
)

func unit8(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 0xff
	default:
		return uint8(f*0xff + 0.5)
	}
}

// ycbcr709 converts one BT.709 sample to RGB
func ycbcr709(yy, cb, cr uint8, r VideoRange) (uint8, uint8, uint8) {
	var y, pb, pr float64
	if r == RangeVideo {
		y = (float64(yy) - 16) / 219
		pb = (float64(cb) - 128) / 224
		pr = (float64(cr) - 128) / 224
	} else {
		y = float64(yy) / 255
		pb = (float64(cb) - 128) / 255
		pr = (float64(cr) - 128) / 255
	}

	red := y + 2*(1-kr709)*pr
	blue := y + 2*(1-kb709)*pb
	green := y - (2*kb709*(1-kb709)*pb+2*kr709*(1-kr709)*pr)/kg709
	return unit8(red), unit8(green), unit8(blue)
}

func ycbcrToImage(b *YCbCrBitmap) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.LumaWidth, b.LumaHeight))
	luma := b.Luma.Pix()
	chroma := b.Chroma.Pix()

	for y := 0; y < b.LumaHeight; y++ {
		cy := y * b.ChromaHeight / b.LumaHeight
		for x := 0; x < b.LumaWidth; x++ {
			cx := x * b.ChromaWidth / b.LumaWidth
			c := chroma[cy*b.ChromaWidth+cx]

			r, g, bl := ycbcr709(luma[y*b.LumaWidth+x], c[0], c[1], b.Range)
			o := img.PixOffset(x, y)
			img.Pix[o+0] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = bl
			img.Pix[o+3] = 0xff
		}
	}
	return img
}
