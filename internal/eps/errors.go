package eps

import "errors"

var (
	// ErrParse marks a telegram that does not match the configured format.
	ErrParse = errors.New("malformed telegram")
	// ErrRange marks a telegram whose values fall outside the physical sensor limits.
	ErrRange = errors.New("sensor value out of range")
	// ErrZeroVariance is returned by the regression when every x value is identical.
	ErrZeroVariance = errors.New("linear regression undefined: zero variance in x")
	// ErrEmptyInput is returned by statistics that need at least one sample.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidCount is returned by Dequeue for counts below DrainAll.
	ErrInvalidCount = errors.New("invalid dequeue count")
)
