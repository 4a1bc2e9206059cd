package render

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rfsense/psd-sensor/internal/spectrum"
)

func testResult() *spectrum.Result {
	pxx := make([]float64, 256)
	for i := range pxx {
		pxx[i] = -100 + 10*math.Exp(-math.Pow(float64(i-128)/8, 2))
	}
	return &spectrum.Result{
		StartFreqHz:  90_000_000,
		EndFreqHz:    110_000_000,
		CenterFreqHz: 100_000_000,
		BinCount:     256,
		Pxx:          pxx,
		Timestamp:    time.Now().UTC(),
	}
}

func TestSnapshot_Render(t *testing.T) {
	s, err := NewSnapshot(Config{Width: 640, Height: 320, Unit: "dBm"})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	defer s.Close()

	img, err := s.Render(testResult())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 640 || bounds.Dy() != 320 {
		t.Errorf("image size = %dx%d, want 640x320", bounds.Dx(), bounds.Dy())
	}

	traced := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.RGBAAt(x, y) == traceColor {
				traced++
			}
		}
	}
	if traced == 0 {
		t.Error("no trace pixels drawn")
	}
}

func TestSnapshot_RenderEmptySpectrum(t *testing.T) {
	s, err := NewSnapshot(Config{})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	defer s.Close()

	if _, err = s.Render(&spectrum.Result{}); err == nil {
		t.Error("Render succeeded on empty spectrum, want error")
	}
}

func TestSnapshot_RenderAllInfinite(t *testing.T) {
	// A zero-power window in dB scale is all -Inf; the renderer must
	// still produce an image.
	s, err := NewSnapshot(Config{})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	defer s.Close()

	result := testResult()
	for i := range result.Pxx {
		result.Pxx[i] = math.Inf(-1)
	}

	if _, err = s.Render(result); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestSnapshot_MissingFont(t *testing.T) {
	_, err := NewSnapshot(Config{FontPath: filepath.Join(t.TempDir(), "missing.ttf")})
	if err == nil {
		t.Error("NewSnapshot succeeded with a missing font, want error")
	}
}

func TestSnapshot_WritePNG(t *testing.T) {
	s, err := NewSnapshot(Config{Width: 320, Height: 160})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	defer s.Close()

	path := filepath.Join(t.TempDir(), "psd.png")
	if err = s.WritePNG(testResult(), path); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 160 {
		t.Errorf("snapshot size = %dx%d, want 320x160", cfg.Width, cfg.Height)
	}
}
