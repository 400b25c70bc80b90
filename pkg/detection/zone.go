package detection

import (
	"errors"
	"fmt"
)

// Point is a vertex in frame-relative coordinates, both axes in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zone is a named polygon of interest within a video frame.
type Zone struct {
	Name   string  `json:"name,omitempty"`
	Points []Point `json:"points"`
}

// Validate checks the polygon has at least three normalized vertices.
func (z Zone) Validate() error {
	if len(z.Points) < 3 {
		return errors.New("zone needs at least 3 points")
	}
	for i, p := range z.Points {
		if !(p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1) {
			return fmt.Errorf("point %d (%g,%g) outside the unit square", i, p.X, p.Y)
		}
	}
	return nil
}

// RectZone converts a rectangle drawn in frame pixels into a normalized zone.
// Negative widths or heights from dragging up or left are accepted, and the
// result is clamped to the frame.
func RectZone(name string, x, y, w, h, frameWidth, frameHeight float64) (Zone, error) {
	if frameWidth <= 0 || frameHeight <= 0 {
		return Zone{}, errors.New("frame size must be positive")
	}
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	if w == 0 || h == 0 {
		return Zone{}, errors.New("zone has no area")
	}
	left, top := clamp(x/frameWidth), clamp(y/frameHeight)
	right, bottom := clamp((x+w)/frameWidth), clamp((y+h)/frameHeight)
	return Zone{Name: name, Points: []Point{
		{X: left, Y: top},
		{X: right, Y: top},
		{X: right, Y: bottom},
		{X: left, Y: bottom},
	}}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
