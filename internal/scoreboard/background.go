package scoreboard

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// courtSVG is the panel backdrop: a dark court surface with a net stripe and service lines.
const courtSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %[1]d %[2]d" width="%[1]d" height="%[2]d">
<defs>
<linearGradient id="surface" x1="0" y1="0" x2="0" y2="1">
<stop offset="0" stop-color="#1d3b5c"/>
<stop offset="1" stop-color="#122740"/>
</linearGradient>
</defs>
<rect x="0" y="0" width="%[1]d" height="%[2]d" fill="url(#surface)"/>
<rect x="8" y="8" width="%[3]d" height="%[4]d" fill="none" stroke="#3d6b94" stroke-width="2"/>
<line x1="%[5]d" y1="8" x2="%[5]d" y2="%[6]d" stroke="#2f5678" stroke-width="2"/>
<line x1="8" y1="%[7]d" x2="%[8]d" y2="%[7]d" stroke="#2f5678" stroke-width="1"/>
</svg>`

type backgroundKey struct {
	w, h int
}

var (
	backgroundCache   = map[backgroundKey]*image.RGBA{}
	backgroundCacheMu sync.RWMutex
)

func renderBackground(w, h int) (*image.RGBA, error) {
	key := backgroundKey{w: w, h: h}

	backgroundCacheMu.RLock()
	if img, ok := backgroundCache[key]; ok {
		backgroundCacheMu.RUnlock()
		return cloneRGBA(img), nil
	}
	backgroundCacheMu.RUnlock()

	src := fmt.Sprintf(courtSVG, w, h, w-16, h-16, w/2, h-8, h/2, w-8)
	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(src)))
	if err != nil {
		return nil, fmt.Errorf("parse background svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	backgroundCacheMu.Lock()
	backgroundCache[key] = img
	backgroundCacheMu.Unlock()

	return cloneRGBA(img), nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
