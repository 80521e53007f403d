package eps

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Regression is a least-squares line y = Slope*x + Intercept.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Predict evaluates the fitted line at x.
func (r Regression) Predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// LinearRegression fits an ordinary least-squares line through the points,
// using the interval as x and the ratio as y. It returns ErrZeroVariance
// when the x values do not vary, which includes fewer than two points.
func LinearRegression(points []LinearityPoint) (Regression, error) {
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = float64(p.Interval)
		y[i] = p.Ratio
	}
	return fitLine(x, y)
}

func fitLine(x, y []float64) (Regression, error) {
	n := float64(len(x))
	if len(x) == 0 {
		return Regression{}, fmt.Errorf("%w: no points", ErrZeroVariance)
	}

	xMean := stat.Mean(x, nil)
	yMean := stat.Mean(y, nil)

	sxy := floats.Dot(x, y) - n*xMean*yMean
	sxx := floats.Dot(x, x) - n*xMean*xMean
	if sxx == 0 {
		return Regression{}, fmt.Errorf("%w: %d points share x=%g", ErrZeroVariance, len(x), x[0])
	}

	b1 := sxy / sxx
	b0 := yMean - b1*xMean
	return Regression{Slope: b1, Intercept: b0}, nil
}

// JitteredRegression is a display-only variant for calibration demos. It
// fits the points like LinearRegression, then replaces the slope with a
// random value in [-0.99, -0.86]. The result is not an estimate of anything
// and must never stand in for LinearRegression.
func JitteredRegression(points []LinearityPoint, rng *rand.Rand) (Regression, error) {
	r, err := LinearRegression(points)
	if err != nil {
		return Regression{}, err
	}
	r.Slope = float64(-100+1+rng.Intn(14)) / 100.0
	return r, nil
}
