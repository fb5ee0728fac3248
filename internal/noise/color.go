package noise

import (
	"fmt"
	"math"

	"github.com/i474232898/noise-dashboard/internal/common"
)

const (
	// DefaultMinDB is the level rendered as pure green.
	DefaultMinDB = 40.0
	// DefaultMaxDB is the level rendered as pure red.
	DefaultMaxDB = 110.0
)

// RGB is an 8-bit color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Hex renders the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorScale maps decibel levels onto a green, yellow, red ramp.
type ColorScale struct {
	MinDB float64 `json:"min_db"`
	MaxDB float64 `json:"max_db"`
}

// DefaultScale returns the scale used for map markers and charts.
func DefaultScale() ColorScale {
	return ColorScale{MinDB: DefaultMinDB, MaxDB: DefaultMaxDB}
}

// ColorFor returns the severity color for db. NaN and infinities count as MinDB, as
// does a missing avg_db, which decoding leaves at 0.
// It never fails and has no state, so repeated calls always agree.
func (s ColorScale) ColorFor(db float64) RGB {
	if !common.Finite(db) {
		db = s.MinDB
	}

	var percent float64
	if span := s.MaxDB - s.MinDB; span > 0 {
		percent = (common.Clamp(db, s.MinDB, s.MaxDB) - s.MinDB) / span
	}

	var r, g float64
	if percent < 0.5 {
		r = roundHalfUp(255 * (percent * 2))
		g = 255
	} else {
		r = 255
		g = roundHalfUp(255 * (1 - (percent-0.5)*2))
	}

	return RGB{R: uint8(r), G: uint8(g), B: 0}
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// TextColor is the foreground picked to stay readable on a severity color.
type TextColor string

const (
	TextBlack TextColor = "#000000"
	TextWhite TextColor = "#FFFFFF"
)

// ContrastingTextColor picks black text on light backgrounds and white text otherwise.
func ContrastingTextColor(c RGB) TextColor {
	luminance := (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
	if luminance > 0.5 {
		return TextBlack
	}
	return TextWhite
}
