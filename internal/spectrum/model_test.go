package spectrum

import "testing"

func TestResult_Frequencies(t *testing.T) {
	r := Result{
		StartFreqHz:  90_000_000,
		EndFreqHz:    110_000_000,
		CenterFreqHz: 100_000_000,
		BinCount:     5,
	}

	if got := r.BinWidth(); got != 5_000_000 {
		t.Fatalf("BinWidth = %v, want 5000000", got)
	}

	freqs := r.Frequencies()
	if len(freqs) != 5 {
		t.Fatalf("len(Frequencies) = %d, want 5", len(freqs))
	}
	for i, want := range []float64{90e6, 95e6, 100e6, 105e6, 110e6} {
		if freqs[i] != want {
			t.Errorf("Frequencies[%d] = %v, want %v", i, freqs[i], want)
		}
	}
}

func TestResult_FrequenciesDegenerate(t *testing.T) {
	r := Result{StartFreqHz: 100_000_000, EndFreqHz: 100_000_000, BinCount: 1}

	if got := r.BinWidth(); got != 0 {
		t.Errorf("BinWidth = %v, want 0 for a single bin", got)
	}

	freqs := r.Frequencies()
	if len(freqs) != 1 || freqs[0] != 100e6 {
		t.Errorf("Frequencies = %v, want [1e+08]", freqs)
	}
}
