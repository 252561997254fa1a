package tempmail

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pro004/tempmail/archive"
	"github.com/pro004/tempmail/directory"
	"github.com/pro004/tempmail/mailtm"
)

// Default configuration values.
const (
	DefaultTTL = 24 * time.Hour // how long a binding lives
	MinTTL     = time.Minute

	DefaultSweepInterval = time.Hour // shorter than the TTL so staleness stays bounded
	MinSweepInterval     = time.Second

	DefaultShutdownTimeout = 30 * time.Second
	MinShutdownTimeout     = time.Second

	// Concurrency limits
	DefaultMaxConcurrentRemote = 10 // max in-flight remote calls per service
)

// options holds tempmail configuration.
type options struct {
	directory  directory.Directory
	mailClient mailtm.Client
	archive    archive.Store
	logger     *slog.Logger

	ttl           time.Duration
	sweepInterval time.Duration
	clock         func() time.Time

	// Concurrency limits
	maxConcurrentRemote int

	// Shutdown
	shutdownTimeout time.Duration

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	onEventPublishFailure EventPublishFailureFunc
}

// EventPublishFailureFunc is called when an event fails to publish.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the event failure callback with panic
// recovery so a broken callback cannot take an operation down with it.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:              slog.Default(),
		ttl:                 DefaultTTL,
		sweepInterval:       DefaultSweepInterval,
		clock:               func() time.Time { return time.Now().UTC() },
		maxConcurrentRemote: DefaultMaxConcurrentRemote,
		shutdownTimeout:     DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	// Ensure event failure callback is always set
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures the tempmail service.
type Option func(*options)

// --- Core Options ---

// WithMailClient sets the remote mail service client (required).
func WithMailClient(c mailtm.Client) Option {
	return func(o *options) {
		if c != nil {
			o.mailClient = c
		}
	}
}

// WithDirectory sets the session directory. Defaults to an in-memory
// directory built with the configured TTL.
func WithDirectory(d directory.Directory) Option {
	return func(o *options) {
		if d != nil {
			o.directory = d
		}
	}
}

// WithArchive sets the local message archive. Without one, messages are
// served from the remote service only.
func WithArchive(s archive.Store) Option {
	return func(o *options) {
		if s != nil {
			o.archive = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// --- Expiry Options ---

// WithTTL sets how long a session stays valid after (re)creation.
// Default is 24 hours. Minimum is 1 minute.
// Ignored when WithDirectory supplies a directory with its own TTL.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d >= MinTTL {
			o.ttl = d
		}
	}
}

// WithSweepInterval sets how often the background sweeper scans the
// directory. Default is 1 hour. Minimum is 1 second.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= MinSweepInterval {
			o.sweepInterval = d
		}
	}
}

// WithClock injects the time source used for session creation and
// expiry checks. Tests use this to drive expiry deterministically.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// --- Concurrency Options ---

// WithMaxConcurrentRemote caps in-flight remote calls across all
// owners. Default is 10.
func WithMaxConcurrentRemote(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentRemote = n
		}
	}
}

// WithShutdownTimeout sets how long Close waits for in-flight remote
// calls to finish. Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name for telemetry and event bus
// naming. Default is "tempmail".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Event Options ---

// WithEventTransport sets a custom event transport.
// Takes precedence over WithRedisClient.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient sets the Redis client for the event bus transport.
// Without a transport or Redis client, events use an in-process noop
// transport.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(o *options) {
		if c != nil {
			o.redisClient = c
		}
	}
}

// WithEventErrorsFatal makes event publish failures surface as
// EventPublishError from the operation that triggered them. Default is
// to log via the failure callback and carry on.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventPublishFailureCallback sets the callback invoked when an
// event fails to publish and event errors are not fatal.
func WithEventPublishFailureCallback(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}
