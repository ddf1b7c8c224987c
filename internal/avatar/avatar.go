// Package avatar generates the default identicon avatars assigned at
// registration: an 8x8 horizontally mirrored block pattern derived from a
// SHA-512 digest of the username, rendered as an inline PNG data URL.
package avatar

import (
	"bytes"
	"crypto/sha512"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"
)

const (
	gridSize  = 8
	imageSize = 256
	cellSize  = imageSize / gridSize
)

// Generate produces a deterministic identicon data URL for the given seed.
func Generate(seed string) string {
	digest := sha512.Sum512([]byte(seed))

	foreground, background := pickColors(digest)

	img := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			img.Set(x, y, background)
		}
	}

	// Fill the left half from digest bits and mirror it for symmetry.
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize/2; col++ {
			bit := row*gridSize/2 + col
			if digest[bit/8]>>(uint(bit)%8)&1 == 0 {
				continue
			}
			fillCell(img, col, row, foreground)
			fillCell(img, gridSize-1-col, row, foreground)
		}
	}

	var buf bytes.Buffer
	// Encoding an in-memory RGBA image cannot fail
	_ = png.Encode(&buf, img)

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fillCell(img *image.RGBA, col, row int, c color.Color) {
	for y := row * cellSize; y < (row+1)*cellSize; y++ {
		for x := col * cellSize; x < (col+1)*cellSize; x++ {
			img.Set(x, y, c)
		}
	}
}

// pickColors derives a saturated foreground and a near-white complementary
// background from the digest tail, matching the original avatar palette.
func pickColors(digest [64]byte) (color.RGBA, color.RGBA) {
	hue := float64(digest[60]) / 255
	saturation := float64(digest[61])/255*0.5 + 0.3
	brightness := float64(digest[62])/255*0.4 + 0.5
	foreground := hsvToRGB(hue, saturation, brightness)

	bgHue := hue + 0.5 + float64(digest[63])/255*0.1
	if bgHue > 1 {
		bgHue -= 1
	}
	background := hsvToRGB(bgHue, float64(digest[59])/255*0.15, 1)

	return foreground, background
}

func hsvToRGB(h, s, v float64) color.RGBA {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
