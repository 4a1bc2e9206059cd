package dsp

import (
	"fmt"
	"math"
)

// ReferenceImpedance is the antenna reference impedance in ohms used
// for voltage-based display units.
const ReferenceImpedance = 50.0

// ScaleKind selects the display unit of the published PSD values.
// The engine computes in linear power; conversion happens once per
// cycle just before publication.
type ScaleKind int

const (
	ScaleDBm ScaleKind = iota
	ScaleDBmV
	ScaleDBuV
	ScaleVolt
	ScaleWatt
)

var scaleNames = map[ScaleKind]string{
	ScaleDBm:  "dBm",
	ScaleDBmV: "dBmV",
	ScaleDBuV: "dBµV",
	ScaleVolt: "V",
	ScaleWatt: "W",
}

func (s ScaleKind) String() string {
	if name, ok := scaleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scale(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s ScaleKind) MarshalText() ([]byte, error) {
	name, ok := scaleNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown scale %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "dBuV" is
// accepted as an ASCII spelling of dBµV.
func (s *ScaleKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "dBm", "":
		*s = ScaleDBm
	case "dBmV":
		*s = ScaleDBmV
	case "dBµV", "dBuV":
		*s = ScaleDBuV
	case "V":
		*s = ScaleVolt
	case "W":
		*s = ScaleWatt
	default:
		return fmt.Errorf("unknown scale %q", text)
	}
	return nil
}

// Apply converts linear power values to the requested display unit,
// in place, and returns the slice.
//
//	dBm  = 10·log10(P / 1 mW)
//	dBmV = 20·log10(sqrt(P·R) / 1 mV)
//	dBµV = 20·log10(sqrt(P·R) / 1 µV)
//	V    = sqrt(P·R)
//	W    = P
func Apply(pxx []float64, scale ScaleKind) []float64 {
	switch scale {
	case ScaleDBm:
		for i, p := range pxx {
			pxx[i] = 10 * math.Log10(p/1e-3)
		}
	case ScaleDBmV:
		for i, p := range pxx {
			pxx[i] = 20 * math.Log10(math.Sqrt(p*ReferenceImpedance)/1e-3)
		}
	case ScaleDBuV:
		for i, p := range pxx {
			pxx[i] = 20 * math.Log10(math.Sqrt(p*ReferenceImpedance)/1e-6)
		}
	case ScaleVolt:
		for i, p := range pxx {
			pxx[i] = math.Sqrt(p * ReferenceImpedance)
		}
	case ScaleWatt:
		// identity
	}
	return pxx
}

// CropSpan crops the frequency axis to the requested span around the
// center frequency when the computed spectrum is wider than requested.
// It returns sub-slices of the inputs; the data is never resampled.
func CropSpan(freqs, pxx []float64, centerFreqHz, spanHz uint64) ([]float64, []float64) {
	if spanHz == 0 || len(freqs) == 0 {
		return freqs, pxx
	}

	lo := float64(centerFreqHz) - float64(spanHz)/2
	hi := float64(centerFreqHz) + float64(spanHz)/2
	if freqs[0] >= lo && freqs[len(freqs)-1] <= hi {
		return freqs, pxx
	}

	start := 0
	for start < len(freqs) && freqs[start] < lo {
		start++
	}
	end := len(freqs)
	for end > start && freqs[end-1] > hi {
		end--
	}

	return freqs[start:end], pxx[start:end]
}
