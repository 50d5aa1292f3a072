package palette

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"arp/api/internal/nodes"
)

type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positioner measures where the palette should appear.
type Positioner interface {
	// CaretRect fails when the caret cannot be measured, e.g. while hidden.
	CaretRect() (Rect, error)
	SurfaceRect() Rect
}

const caretGap = 4

// fallbackOffset is applied to the surface origin when the caret is unknown.
var fallbackOffset = Point{X: 16, Y: 40}

func (p *Palette) place() Point {
	if p.positioner == nil {
		return fallbackOffset
	}
	if r, err := p.positioner.CaretRect(); err == nil {
		return Point{X: r.Left, Y: r.Top + r.Height + caretGap}
	}
	s := p.positioner.SurfaceRect()
	return Point{X: s.Left + fallbackOffset.X, Y: s.Top + fallbackOffset.Y}
}

var ErrInvalidDate = errors.New("unrecognized date")

var isoPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ResolveDate turns dialog input into a YYYY-MM-DD date. ISO dates are taken
// as-is; anything else is read as natural language relative to now.
func (p *Palette) ResolveDate(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrInvalidDate
	}
	if isoPrefix.MatchString(input) {
		if d := nodes.NormalizeDate(input); d != "" {
			return d, nil
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, input)
	}
	r, err := p.dates.Parse(input, now)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, input)
	}
	return r.Time.Format("2006-01-02"), nil
}
