package gfx

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolveRegion turns a module position into a screen region. position is
// either literal "x0,y0,x1,y1" fractions of the screen or a name looked up
// in positions. "" and "None" mean the module draws nothing; ok is false.
// A fraction f maps to pixel int((size-1)*f).
func ResolveRegion(position string, positions map[string]string, width, height int) (Rect, bool, error) {
	position = strings.TrimSpace(position)
	if position == "" || position == "None" {
		return Rect{}, false, nil
	}
	spec := position
	if !strings.Contains(position, ",") {
		named, found := positions[position]
		if !found {
			return Rect{}, false, fmt.Errorf("unknown position %q", position)
		}
		if strings.TrimSpace(named) == "" || named == "None" {
			return Rect{}, false, nil
		}
		spec = named
	}
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return Rect{}, false, fmt.Errorf("position %q: want 4 comma-separated fractions", position)
	}
	var f [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, false, fmt.Errorf("position %q: %w", position, err)
		}
		if v < 0 || v > 1 {
			return Rect{}, false, fmt.Errorf("position %q: %v outside [0,1]", position, v)
		}
		f[i] = v
	}
	r := Rect{
		X0: int(float64(width-1) * f[0]),
		Y0: int(float64(height-1) * f[1]),
		X1: int(float64(width-1) * f[2]),
		Y1: int(float64(height-1) * f[3]),
	}
	if r.Empty() {
		return Rect{}, false, fmt.Errorf("position %q: empty region %s", position, r)
	}
	return r, true, nil
}
