package chart

import "image/color"

// Ramp endpoints sampled from the sequential blue and green colour maps at
// 0.2 and 0.8.
var (
	blueLight  = color.RGBA{R: 198, G: 219, B: 239, A: 255}
	blueDark   = color.RGBA{R: 33, G: 113, B: 181, A: 255}
	greenLight = color.RGBA{R: 199, G: 233, B: 192, A: 255}
	greenDark  = color.RGBA{R: 35, G: 139, B: 69, A: 255}
)

// Palette returns n colours: the first n/2 on a blue ramp, the rest on a
// green ramp, each ramp light to dark.
func Palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	half := n / 2
	out := make([]color.Color, 0, n)
	out = append(out, ramp(blueLight, blueDark, half)...)
	out = append(out, ramp(greenLight, greenDark, n-half)...)
	return out
}

// ramp returns k evenly spaced colours from a to b inclusive. A single colour
// is a.
func ramp(a, b color.RGBA, k int) []color.Color {
	out := make([]color.Color, k)
	for i := range out {
		var t float64
		if k > 1 {
			t = float64(i) / float64(k-1)
		}
		out[i] = color.RGBA{
			R: lerp(a.R, b.R, t),
			G: lerp(a.G, b.G, t),
			B: lerp(a.B, b.B, t),
			A: 255,
		}
	}
	return out
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
