package model

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// ErrConfiguration marks fatal setup problems detected before any star is fit.
var ErrConfiguration = eris.New("configuration error")

// ConfigError wraps ErrConfiguration with a description.
func ConfigError(format string, args ...any) error {
	return eris.Wrap(ErrConfiguration, fmt.Sprintf(format, args...))
}

// IsConfigError reports whether err originates from ConfigError.
func IsConfigError(err error) bool {
	return eris.Is(err, ErrConfiguration)
}

// Sentinel magnitudes used in place of non-finite likelihoods.
const (
	LogZero = -1e300
	Chi2Inf = 1e300
)

func nan() float64 { return math.NaN() }
