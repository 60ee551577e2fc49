package psd

// decomposeAlpha removes the white matte that the composite of a
// transparent document has baked in. It applies to 8-bit rasters whose
// last band is alpha. Fully transparent pixels have their color zeroed.
func decomposeAlpha(r *Raster) {
	if r.Depth != 8 || r.Bands < 2 {
		return
	}
	a := r.Bands - 1
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			alpha := r.Sample(x, y, a)
			if alpha == 0 {
				for b := 0; b < a; b++ {
					r.SetSample(x, y, b, 0)
				}
				continue
			}
			na := float64(alpha) / 255
			for b := 0; b < a; b++ {
				r.SetSample(x, y, b, uint32(unmatte(r.Sample(x, y, b), na)))
			}
		}
	}
}

// unmatte solves c = v*a + (1-a) for v. Results are truncated and then
// clamped to the byte range.
func unmatte(c uint32, alpha float64) uint8 {
	v := int((float64(c)/255/alpha - (1-alpha)/alpha) * 255)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
