package waveform

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/interp"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
	"github.com/RyanBlaney/harmonic-analyzer/pkg/logging"
)

const (
	traceThreshold = 127
	minTracePoints = 10
)

// Calibration maps the plot grid of a screenshot onto physical units.
// X0..X1 spans TimeScale seconds, Y0..Y1 spans -VoltScale..+VoltScale.
type Calibration struct {
	X0        int     `json:"x0" yaml:"x0"`
	X1        int     `json:"x1" yaml:"x1"`
	Y0        int     `json:"y0" yaml:"y0"`
	Y1        int     `json:"y1" yaml:"y1"`
	TimeScale float64 `json:"time_scale" yaml:"time_scale"`
	VoltScale float64 `json:"volt_scale" yaml:"volt_scale"`
}

// DefaultCalibration matches a 700x500 grid at 20ms / 1V full scale
func DefaultCalibration() Calibration {
	return Calibration{
		X0:        50,
		X1:        750,
		Y0:        50,
		Y1:        550,
		TimeScale: 0.02,
		VoltScale: 1.0,
	}
}

// Validate checks the calibration describes a non-empty region
func (c Calibration) Validate() error {
	if c.X1 <= c.X0 || c.Y1 <= c.Y0 {
		return common.NewInvalidConfiguration(fmt.Sprintf("calibration region [%d,%d)x[%d,%d) is empty", c.X0, c.X1, c.Y0, c.Y1), nil)
	}
	if c.X0 < 0 || c.Y0 < 0 {
		return common.NewInvalidConfiguration("calibration bounds must be non-negative", nil)
	}
	if c.TimeScale <= 0 || c.VoltScale <= 0 {
		return common.NewInvalidConfiguration("calibration scales must be positive", nil)
	}
	return nil
}

// ImageExtractor recovers a waveform from a rasterized scope trace.
// It is a best-effort path: one point per pixel column, taken from the
// dark pixel nearest the top of the calibrated grid.
type ImageExtractor struct {
	calibration Calibration
	logger      logging.Logger
}

// NewImageExtractor creates an extractor for a calibration
func NewImageExtractor(calibration Calibration, logger logging.Logger) (*ImageExtractor, error) {
	if err := calibration.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ImageExtractor{
		calibration: calibration,
		logger: logger.WithFields(logging.Fields{
			"component": "image_extractor",
		}),
	}, nil
}

// Calibration returns the calibration in use
func (e *ImageExtractor) Calibration() Calibration {
	return e.calibration
}

// ExtractFile decodes a PNG or JPEG and extracts its trace
func (e *ImageExtractor) ExtractFile(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, common.NewMalformedInput(filepath.Base(path), "cannot decode image", err)
	}

	wf, err := e.Extract(img)
	if err != nil {
		var ae *common.AnalysisError
		if errors.As(err, &ae) && ae.Source == "" {
			ae.Source = filepath.Base(path)
		}
		return nil, err
	}
	return wf, nil
}

// Extract converts an image into a uniformly resampled waveform
func (e *ImageExtractor) Extract(img image.Image) (*Waveform, error) {
	binary := closeBinary(thresholdImage(img))
	bounds := img.Bounds()

	cal := e.calibration
	x0, x1 := cal.X0, min(cal.X1, bounds.Dx())
	y0, y1 := cal.Y0, min(cal.Y1, bounds.Dy())
	if x1 <= x0 || y1 <= y0 {
		return nil, common.NewMalformedInput("", "calibrated region lies outside the image", nil)
	}

	gridWidth := float64(cal.X1 - cal.X0)
	gridHeight := float64(cal.Y1 - cal.Y0)

	var times, values []float64
	for col := x0; col < x1; col++ {
		for row := y0; row < y1; row++ {
			if binary[row][col] == 0 {
				offset := float64(row - cal.Y0)
				times = append(times, float64(col-cal.X0)/gridWidth*cal.TimeScale)
				values = append(values, (1-2*offset/gridHeight)*cal.VoltScale)
				break
			}
		}
	}

	if len(times) < minTracePoints {
		return nil, common.NewMalformedInput("",
			fmt.Sprintf("found %d trace points, need at least %d", len(times), minTracePoints), nil)
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(times, values); err != nil {
		return nil, common.NewMalformedInput("", "cannot fit trace", err)
	}

	n := 2 * len(times)
	tMin, tMax := times[0], times[len(times)-1]
	step := (tMax - tMin) / float64(n-1)

	samples := make([]float64, n)
	for i := range samples {
		t := tMin + float64(i)*step
		if i == n-1 {
			t = tMax
		}
		samples[i] = spline.Predict(t)
	}

	wf, err := New(samples, 1/step)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Extracted waveform from image", logging.Fields{
		"trace_points": len(times),
		"samples":      n,
		"sample_rate":  wf.SampleRate,
		"duration_s":   tMax - tMin,
	})

	return wf, nil
}

// thresholdImage converts to grayscale and binarizes: 255 above the
// threshold, 0 otherwise. Rows are indexed from the image's min point.
func thresholdImage(img image.Image) [][]uint8 {
	b := img.Bounds()
	out := make([][]uint8, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		out[y] = make([]uint8, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y > traceThreshold {
				out[y][x] = 255
			}
		}
	}
	return out
}

// closeBinary applies a 3x3 morphological close (dilate then erode).
// Neighbours outside the image are ignored.
func closeBinary(src [][]uint8) [][]uint8 {
	return morph(morph(src, true), false)
}

func morph(src [][]uint8, dilate bool) [][]uint8 {
	h := len(src)
	if h == 0 {
		return src
	}
	w := len(src[0])
	out := make([][]uint8, h)
	for y := 0; y < h; y++ {
		out[y] = make([]uint8, w)
		for x := 0; x < w; x++ {
			v := src[y][x]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					yy, xx := y+dy, x+dx
					if yy < 0 || yy >= h || xx < 0 || xx >= w {
						continue
					}
					if dilate {
						v = max(v, src[yy][xx])
					} else {
						v = min(v, src[yy][xx])
					}
				}
			}
			out[y][x] = v
		}
	}
	return out
}
