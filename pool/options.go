package pool

import (
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"time"

	"github.com/ygrebnov/errorc"
	"golang.org/x/time/rate"

	"github.com/ygrebnov/merge/metrics"
)

// config holds Pool configuration.
type config struct {
	// Name identifies the pool in logs.
	// Default: "merge".
	Name string

	// CoreSize is the number of workers started by New and kept alive while idle.
	// Default: 2 * runtime.NumCPU().
	CoreSize int

	// MaxSize caps the number of workers. Workers above CoreSize start only when the
	// queue is full and retire after KeepAlive of idleness.
	// Default: 2 * runtime.NumCPU().
	MaxSize int

	// QueueCapacity is the size of the jobs buffer.
	// Default: 32767.
	QueueCapacity int

	// Policy applies when the queue is full and MaxSize workers are alive.
	// Default: Reject.
	Policy SaturationPolicy

	// KeepAlive is how long a worker above CoreSize waits for a job before retiring.
	// Default: 60s.
	KeepAlive time.Duration

	// Limiter throttles job starts across all workers. Nil means unlimited.
	Limiter *rate.Limiter

	Logger  *slog.Logger
	Metrics metrics.Provider
}

func defaultConfig() config {
	n := 2 * runtime.NumCPU()
	return config{
		Name:          "merge",
		CoreSize:      n,
		MaxSize:       n,
		QueueCapacity: math.MaxInt16,
		Policy:        Reject,
		KeepAlive:     60 * time.Second,
		Logger:        slog.New(slog.DiscardHandler),
		Metrics:       metrics.NewNoopProvider(),
	}
}

func validateSize(coreSize, maxSize int) error {
	if maxSize < 1 || coreSize < 0 || coreSize > maxSize {
		return errorc.With(
			ErrInvalidSize,
			errorc.String("core", strconv.Itoa(coreSize)),
			errorc.String("max", strconv.Itoa(maxSize)),
		)
	}
	return nil
}

func validateConfig(cfg *config) error {
	if err := validateSize(cfg.CoreSize, cfg.MaxSize); err != nil {
		return err
	}
	if cfg.QueueCapacity < 0 {
		return errorc.With(ErrInvalidConfig, errorc.String("queue_capacity", strconv.Itoa(cfg.QueueCapacity)))
	}
	if cfg.KeepAlive <= 0 {
		return errorc.With(ErrInvalidConfig, errorc.String("keep_alive", cfg.KeepAlive.String()))
	}
	if cfg.Policy < Reject || cfg.Policy > Discard {
		return errorc.With(ErrInvalidConfig, errorc.String("policy", cfg.Policy.String()))
	}
	return nil
}

// Option configures a Pool. Options report invalid input as errors from New.
type Option func(*config) error

// WithName sets the name used in log records.
func WithName(name string) Option {
	return func(cfg *config) error {
		if name == "" {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithName requires a non-empty name"))
		}
		cfg.Name = name
		return nil
	}
}

// WithSize sets the core and maximum number of workers. Requires 0 <= core <= max and max >= 1.
func WithSize(coreSize, maxSize int) Option {
	return func(cfg *config) error {
		if err := validateSize(coreSize, maxSize); err != nil {
			return err
		}
		cfg.CoreSize, cfg.MaxSize = coreSize, maxSize
		return nil
	}
}

// WithQueueCapacity sets the jobs buffer size. Zero means jobs are handed to idle workers only.
func WithQueueCapacity(n int) Option {
	return func(cfg *config) error { cfg.QueueCapacity = n; return nil }
}

// WithSaturationPolicy selects what Submit does when the pool is saturated (default Reject).
func WithSaturationPolicy(p SaturationPolicy) Option {
	return func(cfg *config) error { cfg.Policy = p; return nil }
}

// WithKeepAlive sets how long surplus workers stay idle before retiring (default 60s).
func WithKeepAlive(d time.Duration) Option {
	return func(cfg *config) error { cfg.KeepAlive = d; return nil }
}

// WithRateLimit allows at most perSecond job starts per second with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *config) error {
		if perSecond <= 0 || burst <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithRateLimit requires perSecond > 0 and burst > 0"))
		}
		cfg.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithLogger sets the logger. Nil keeps the default, which discards records.
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
