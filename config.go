package merge

import (
	"log/slog"
	"strconv"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/merge/metrics"
)

// config holds per-call settings.
type config struct {
	// MaxInFlight caps how many units of one batch may be submitted to the pool and not yet finished.
	// Zero means no cap beyond the pool itself.
	// Default: 0.
	MaxInFlight int

	Logger  *slog.Logger
	Metrics metrics.Provider
}

func defaultConfig() config {
	return config{
		MaxInFlight: 0,
		Logger:      slog.New(slog.DiscardHandler),
		Metrics:     metrics.NewNoopProvider(),
	}
}

func newConfig(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	return cfg, nil
}

// Option configures a single compute call.
type Option func(*config) error

// WithMaxInFlight lets at most n units of the batch occupy the pool at once, so one large
// batch cannot fill the shared queue. n must be positive.
func WithMaxInFlight(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("max_in_flight", strconv.Itoa(n)))
		}
		cfg.MaxInFlight = n
		return nil
	}
}

// WithLogger sets the logger used for batch diagnostics. Nil keeps the discarding default.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) error {
		if l != nil {
			cfg.Logger = l
		}
		return nil
	}
}

// WithMetrics sets the metrics provider. Nil keeps the no-op default.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p != nil {
			cfg.Metrics = p
		}
		return nil
	}
}
