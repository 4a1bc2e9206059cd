// Package spectrum defines the outbound power spectral density result
// model shared by the engine, the message bus and the renderer.
package spectrum

import "time"

// Result is one completed PSD estimate. It is transient: published on
// the data channel and discarded; the receiving gateway is responsible
// for retention and derived metrics (SNR, noise floor).
type Result struct {
	StartFreqHz  uint64    `json:"start_freq_hz"`
	EndFreqHz    uint64    `json:"end_freq_hz"`
	CenterFreqHz uint64    `json:"center_freq_hz"`
	BinCount     uint32    `json:"bin_count"`
	Pxx          []float64 `json:"Pxx"` // one value per bin, ascending frequency order
	Timestamp    time.Time `json:"timestamp"`
}

// BinWidth returns the frequency spacing between adjacent bins in Hz,
// or 0 for degenerate results.
func (r *Result) BinWidth() float64 {
	if r.BinCount < 2 {
		return 0
	}
	return float64(r.EndFreqHz-r.StartFreqHz) / float64(r.BinCount-1)
}

// Frequencies reconstructs the frequency axis of the result.
func (r *Result) Frequencies() []float64 {
	freqs := make([]float64, r.BinCount)
	width := r.BinWidth()
	for i := range freqs {
		freqs[i] = float64(r.StartFreqHz) + float64(i)*width
	}
	return freqs
}
