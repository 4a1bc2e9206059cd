package dsp

// BytesToIQ converts interleaved signed 8-bit I/Q bytes (the
// hackrf_transfer raw format) to complex samples normalized to full
// scale ±1.0. It returns the number of complex samples written; a
// trailing odd byte is ignored.
func BytesToIQ(dst []complex128, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := 0; i < n; i++ {
		re := float64(int8(src[2*i])) / 128.0
		im := float64(int8(src[2*i+1])) / 128.0
		dst[i] = complex(re, im)
	}
	return n
}
