package emcfand

import "errors"

var ErrEmptyCurve = errors.New("no curve points")

// Curve maps a temperature to a fan duty cycle through piecewise linear
// segments between the configured points.
type Curve struct {
	points   []CurvePoint
	segments []segment
}

type segment struct {
	temperature float64
	eval        func(float64) float64
}

// NewCurve builds the evaluator. The curve is extended with a flat start
// (the first point's duty below it) and, when the last point stops short
// of 100%, a vertical jump to 100% above it.
func NewCurve(points []CurvePoint) (*Curve, error) {
	if len(points) == 0 {
		return nil, ErrEmptyCurve
	}

	extended := make([]CurvePoint, 0, len(points)+2)
	extended = append(extended, CurvePoint{Temperature: 0, Percent: points[0].Percent})
	extended = append(extended, points...)
	if last := extended[len(extended)-1]; last.Percent < 100 {
		extended = append(extended, CurvePoint{Temperature: last.Temperature, Percent: 100})
	}

	c := &Curve{points: points}
	for i, p := range extended[1:] { // i is the previous index, p the current point
		lowT, highT := extended[i].Temperature, p.Temperature
		c.segments = append(c.segments, segment{
			temperature: float64(lowT),
			eval:        percentFromTempSegment(float64(lowT), float64(extended[i].Percent), float64(highT), float64(p.Percent)),
		})
	}

	return c, nil
}

// Points returns the configured points, without the synthetic extensions.
func (c *Curve) Points() []CurvePoint {
	return c.points
}

// Eval returns the duty cycle percent for a temperature.
func (c *Curve) Eval(temperature float64) int {
	for i := len(c.segments) - 1; i >= 0; i-- {
		s := c.segments[i]
		if temperature >= s.temperature {
			return int(s.eval(temperature))
		}
	}

	return 100 // below 0°C only when a sensor misbehaves, fail safe
}

func percentFromTempSegment(temp1, pct1, temp2, pct2 float64) func(temp float64) float64 {
	if temp1 == temp2 {
		// Simplify things in order to make a clean vertical slope.
		temp2 = 2
		temp1 = 1
	}

	a := (pct2 - pct1) / (temp2 - temp1) // slope
	b := pct1 - a*temp1                  // y-intercept

	return func(temp float64) float64 {
		return min(a*temp+b, 100)
	}
}
