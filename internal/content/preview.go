package content

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
)

const (
	imagePreviewSide = 32
	fileIconSide     = 16
)

// Preview returns a small thumbnail for c: the image scaled proportionally so
// its longest side is at most 32 pixels, or a generic 16 pixel file icon for
// file references. Text variants have no preview.
func Preview(c Content) (image.Image, bool) {
	switch c := c.(type) {
	case Image:
		src, _, err := image.Decode(bytes.NewReader(c.Data))
		if err != nil {
			return nil, false
		}
		return scaleToFit(src, imagePreviewSide), true
	case Files:
		if len(c.Paths) == 0 {
			return nil, false
		}
		return fileIcon(), true
	default:
		return nil, false
	}
}

// scaleToFit shrinks src so neither side exceeds maxSide. It never enlarges.
func scaleToFit(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}
	nw, nh := maxSide, maxSide
	if w > h {
		nh = max(1, h*maxSide/w)
	} else {
		nw = max(1, w*maxSide/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// fileIcon draws a plain document glyph with a folded corner.
var fileIcon = sync.OnceValue(func() image.Image {
	const w, h, fold = 12, fileIconSide, 4
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	border := color.RGBA{0x70, 0x70, 0x70, 0xff}
	paper := color.RGBA{0xfa, 0xfa, 0xfa, 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case x >= w-fold && y < fold && x-(w-fold) > y:
				// cut-away corner stays transparent
			case x == 0 || y == h-1 || x == w-1 || y == 0 || x-(w-fold) == y:
				img.Set(x, y, border)
			default:
				img.Set(x, y, paper)
			}
		}
	}
	return img
})
