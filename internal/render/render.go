// Package render draws the most recent PSD estimate as a PNG snapshot,
// a local diagnostic view for an engine that otherwise only publishes
// to the message channel.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/rfsense/psd-sensor/internal/spectrum"
)

const (
	dpi      = 72.0
	fontSize = 12.0

	defaultWidth  = 1024
	defaultHeight = 400

	topBorder    = 20
	leftBorder   = 70
	bottomBorder = 40
	rightBorder  = 20

	tickMarkLength = 5
	pixelsPerLabel = 150
)

var (
	background = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xff}
	gridColor  = color.RGBA{R: 0x30, G: 0x30, B: 0x40, A: 0xff}
	traceColor = color.RGBA{R: 0x30, G: 0xd0, B: 0x60, A: 0xff}
	axisColor  = color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}
)

// Config holds the snapshot renderer options. FontPath is optional:
// without a font the plot is drawn unlabelled.
type Config struct {
	Width    int
	Height   int
	FontPath string
	Unit     string // axis label for power values, e.g. "dBm"
}

// Snapshot renders spectrum results into annotated PSD plots.
type Snapshot struct {
	config   Config
	context  *freetype.Context
	fontFace font.Face
}

// NewSnapshot creates a renderer. The font file, when configured, is
// loaded once up front so a bad path fails at startup rather than
// mid-acquisition.
func NewSnapshot(config Config) (*Snapshot, error) {
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}

	s := Snapshot{config: config}

	if config.FontPath != "" {
		fontBytes, err := os.ReadFile(config.FontPath)
		if err != nil {
			return nil, fmt.Errorf("reading font: %w", err)
		}

		parsedFont, err := freetype.ParseFont(fontBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}

		ctx := freetype.NewContext()
		ctx.SetDPI(dpi)
		ctx.SetFont(parsedFont)
		ctx.SetFontSize(fontSize)
		ctx.SetHinting(font.HintingFull)
		ctx.SetSrc(image.NewUniform(axisColor))

		s.context = ctx
		s.fontFace = truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
	}

	return &s, nil
}

// Close releases the font face.
func (s *Snapshot) Close() error {
	if s.fontFace != nil {
		return s.fontFace.Close()
	}
	return nil
}

// Render draws the PSD trace with frequency and power scales.
func (s *Snapshot) Render(result *spectrum.Result) (*image.RGBA, error) {
	if len(result.Pxx) == 0 {
		return nil, fmt.Errorf("empty spectrum")
	}

	img := image.NewRGBA(image.Rect(0, 0, s.config.Width, s.config.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	plot := image.Rect(leftBorder, topBorder, s.config.Width-rightBorder, s.config.Height-bottomBorder)

	pMin, pMax := powerBounds(result.Pxx)

	s.drawGrid(img, plot, pMin, pMax)
	s.drawTrace(img, plot, result.Pxx, pMin, pMax)

	if s.context != nil {
		s.context.SetClip(img.Bounds())
		s.context.SetDst(img)
		if err := s.drawFrequencyScale(img, plot, result); err != nil {
			return nil, fmt.Errorf("drawing frequency scale: %w", err)
		}
		if err := s.drawPowerScale(plot, pMin, pMax); err != nil {
			return nil, fmt.Errorf("drawing power scale: %w", err)
		}
	}

	return img, nil
}

// WritePNG renders the result and replaces path atomically, so a
// concurrent reader never observes a half-written file.
func (s *Snapshot) WritePNG(result *spectrum.Result, path string) error {
	img, err := s.Render(result)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".psd-*.png")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}

	if err = png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing snapshot file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	return nil
}

func (s *Snapshot) drawGrid(img *image.RGBA, plot image.Rectangle, pMin, pMax float64) {
	for x := plot.Min.X; x < plot.Max.X; x++ {
		img.Set(x, plot.Max.Y, axisColor)
	}
	for y := plot.Min.Y; y <= plot.Max.Y; y++ {
		img.Set(plot.Min.X, y, axisColor)
	}

	// Horizontal gridlines at each power tick.
	for _, tick := range powerTicks(pMin, pMax) {
		y := powerToY(tick, plot, pMin, pMax)
		for x := plot.Min.X + 1; x < plot.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
	}

	// Vertical gridlines at each frequency tick.
	for _, x := range frequencyTickColumns(plot) {
		for y := plot.Min.Y; y < plot.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
	}
}

func (s *Snapshot) drawTrace(img *image.RGBA, plot image.Rectangle, pxx []float64, pMin, pMax float64) {
	width := plot.Dx()
	prevY := -1
	for x := 0; x < width; x++ {
		bin := x * len(pxx) / width
		y := powerToY(pxx[bin], plot, pMin, pMax)

		img.Set(plot.Min.X+x, y, traceColor)

		// Connect vertically to the previous column so steep slopes
		// stay a continuous line.
		if prevY >= 0 {
			lo, hi := min(prevY, y), max(prevY, y)
			for yy := lo; yy <= hi; yy++ {
				img.Set(plot.Min.X+x, yy, traceColor)
			}
		}
		prevY = y
	}
}

func (s *Snapshot) drawFrequencyScale(img *image.RGBA, plot image.Rectangle, result *spectrum.Result) error {
	freqs := result.Frequencies()
	if len(freqs) == 0 {
		return nil
	}

	textY := plot.Max.Y + tickMarkLength + s.fontFace.Metrics().Ascent.Round() + 3

	for _, x := range frequencyTickColumns(plot) {
		for y := plot.Max.Y; y < plot.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, axisColor)
		}

		bin := (x - plot.Min.X) * (len(freqs) - 1) / plot.Dx()
		freq := freqs[bin]

		fract, suffix := humanize.ComputeSI(freq)
		label := fmt.Sprintf("%0.3f %sHz", fract, suffix)

		width := font.MeasureString(s.fontFace, label)
		pt := freetype.Pt(x-width.Round()/2, textY)
		if _, err := s.context.DrawString(label, pt); err != nil {
			return err
		}
	}

	return nil
}

func (s *Snapshot) drawPowerScale(plot image.Rectangle, pMin, pMax float64) error {
	descent := s.fontFace.Metrics().Descent.Round()

	for _, tick := range powerTicks(pMin, pMax) {
		y := powerToY(tick, plot, pMin, pMax)

		label := fmt.Sprintf("%0.1f", tick)
		if s.config.Unit != "" {
			label += " " + s.config.Unit
		}

		width := font.MeasureString(s.fontFace, label)
		pt := freetype.Pt(plot.Min.X-width.Round()-tickMarkLength-3, y+descent)
		if _, err := s.context.DrawString(label, pt); err != nil {
			return err
		}
	}

	return nil
}

// powerBounds returns a padded display range, ignoring values a log
// scale turns infinite.
func powerBounds(pxx []float64) (float64, float64) {
	pMin, pMax := math.Inf(1), math.Inf(-1)
	for _, p := range pxx {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		pMin = math.Min(pMin, p)
		pMax = math.Max(pMax, p)
	}
	if pMin > pMax { // all values unusable
		return -1, 1
	}
	if pMin == pMax {
		return pMin - 1, pMax + 1
	}

	pad := (pMax - pMin) * 0.05
	return pMin - pad, pMax + pad
}

func powerToY(p float64, plot image.Rectangle, pMin, pMax float64) int {
	if math.IsNaN(p) {
		return plot.Max.Y
	}
	ratio := (p - pMin) / (pMax - pMin)
	ratio = math.Max(0, math.Min(1, ratio))
	return plot.Max.Y - int(ratio*float64(plot.Dy()))
}

func powerTicks(pMin, pMax float64) []float64 {
	const count = 6
	step := (pMax - pMin) / count
	ticks := make([]float64, 0, count+1)
	for i := 0; i <= count; i++ {
		ticks = append(ticks, pMin+float64(i)*step)
	}
	return ticks
}

func frequencyTickColumns(plot image.Rectangle) []int {
	count := plot.Dx() / pixelsPerLabel
	if count < 2 {
		count = 2
	}
	cols := make([]int, 0, count+1)
	for i := 0; i <= count; i++ {
		cols = append(cols, plot.Min.X+i*plot.Dx()/count)
	}
	return cols
}
