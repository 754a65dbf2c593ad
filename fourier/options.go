package fourier

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/cwbudde/algo-pk/pk/extrap"
	"github.com/cwbudde/algo-pk/pk/nonlinear"
)

// Option customizes the collaborators of an [Engine].
type Option func(*options)

type options struct {
	logger   *log.Logger
	policy   extrap.Policy
	strategy nonlinear.Strategy
}

// WithLogger routes diagnostics to l and sets its level from
// Config.Verbose. The default logger discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithExtrapolation replaces the policy selected by Config.Extrapolation.
// It is the only way to use an [extrap.UserDefined] policy.
func WithExtrapolation(p extrap.Policy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithStrategy replaces the nonlinear strategy selected by Config.Method.
func WithStrategy(s nonlinear.Strategy) Option {
	return func(o *options) {
		if s != nil {
			o.strategy = s
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: log.New(io.Discard)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
