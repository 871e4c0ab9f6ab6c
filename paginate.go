package docforge

import (
	"image"
	"image/draw"
)

// basePxPerMM is the CSS reference pixel density: 96 dpi over 25.4 mm/in.
const basePxPerMM = 96.0 / 25.4

// pxPerMM returns the raster pixel density for a device scale factor.
func pxPerMM(scale float64) float64 {
	return basePxPerMM * scale
}

// pageCountFor returns the number of pages a raster of the given pixel
// height occupies, one page minimum. contentHeightPx is the printable
// page height converted to raster pixels.
func pageCountFor(imageHeightPx, contentHeightPx int) int {
	if imageHeightPx <= 0 || contentHeightPx <= 0 {
		return 1
	}
	n := imageHeightPx / contentHeightPx
	if imageHeightPx%contentHeightPx != 0 {
		n++
	}
	return n
}

// sliceImage cuts a tall raster into consecutive horizontal bands of at
// most bandHeightPx pixels. The last band keeps its natural height so no
// trailing whitespace is invented. Each band is an independent copy.
func sliceImage(img image.Image, bandHeightPx int) []image.Image {
	bounds := img.Bounds()
	if bandHeightPx <= 0 || bounds.Dy() <= bandHeightPx {
		return []image.Image{img}
	}

	var bands []image.Image
	for y := bounds.Min.Y; y < bounds.Max.Y; y += bandHeightPx {
		h := bandHeightPx
		if y+h > bounds.Max.Y {
			h = bounds.Max.Y - y
		}
		band := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), h))
		draw.Draw(band, band.Bounds(), img, image.Pt(bounds.Min.X, y), draw.Src)
		bands = append(bands, band)
	}
	return bands
}
