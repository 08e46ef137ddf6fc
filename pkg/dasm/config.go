// config.go defines the internal configuration object and the functional
// options New callers use to influence it. Unlike the teacher's generic
// Option[K,V] (pkg/config.go), the core cache has no type parameters of its
// own, so Option here closes over a concrete config directly — the same
// functional-option shape, one fewer type parameter.
//
// © 2025 dasm-cache authors. MIT License.
package dasm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a Shared instance at Init time.
type Option func(*config)

type config struct {
	ringSizeBytes uint64
	parseWorkers  int
	sweepInterval time.Duration

	evictThresholdUs          int64
	evictThresholdUserClocks  uint64
	retryThresholdUs          int64
	retryThresholdUserClocks  uint64

	logger   *zap.Logger
	metrics  metricsSink
	registry *prometheus.Registry

	blobStore  BlobStore
	dbgiStore  DebugInfoStore
	textStore  TextStore
	fileWatch  FileWatch
	decoder    Decoder
}

// defaultConfig mirrors spec.md §4.2/§4.6's literal constants: a 64 KiB
// ring, one parse worker, a 100 ms sweep, 10s/10-user-clock eviction and
// 1s/10-user-clock retry thresholds.
func defaultConfig() config {
	return config{
		ringSizeBytes:            64 * 1024,
		parseWorkers:             1,
		sweepInterval:            100 * time.Millisecond,
		evictThresholdUs:         10_000_000,
		evictThresholdUserClocks: 10,
		retryThresholdUs:         1_000_000,
		retryThresholdUserClocks: 10,
		logger:                   zap.NewNop(),
		metrics:                  noopMetrics{},
		blobStore:                noopBlobStore{},
		dbgiStore:                noopDebugInfoStore{},
		textStore:                noopTextStore{},
		fileWatch:                noopFileWatch{},
		decoder:                  noopDecoder{},
	}
}

// WithLogger plugs an external zap.Logger. The cache only logs on node
// creation and sweep-level events, never on the lookup hot path.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection, registered against
// reg. Passing nil disables metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = reg
		if reg != nil {
			c.metrics = newPromMetrics(reg)
		}
	}
}

// WithParseWorkers sets the number of parse worker goroutines. Default 1.
func WithParseWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.parseWorkers = n
		}
	}
}

// WithRingSize overrides the request ring's byte capacity. Default 64 KiB.
func WithRingSize(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.ringSizeBytes = n
		}
	}
}

// WithSweepInterval overrides the evictor/detector's sweep period.
// Default 100ms.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithEvictThresholds overrides the idle-eviction thresholds. Defaults are
// 10 wall-clock seconds and 10 user-clock ticks.
func WithEvictThresholds(us int64, userClocks uint64) Option {
	return func(c *config) {
		c.evictThresholdUs = us
		c.evictThresholdUserClocks = userClocks
	}
}

// WithRetryThresholds overrides the change-gen re-enqueue thresholds.
// Defaults are 1 wall-clock second and 10 user-clock ticks.
func WithRetryThresholds(us int64, userClocks uint64) Option {
	return func(c *config) {
		c.retryThresholdUs = us
		c.retryThresholdUserClocks = userClocks
	}
}

// WithBlobStore plugs the content-addressed blob store collaborator. If
// unset, the parse worker treats every hash as absent.
func WithBlobStore(hs BlobStore) Option {
	return func(c *config) {
		if hs != nil {
			c.blobStore = hs
		}
	}
}

// WithDebugInfoStore plugs the debug-info store collaborator. If unset,
// every request is treated as having no debug info.
func WithDebugInfoStore(di DebugInfoStore) Option {
	return func(c *config) {
		if di != nil {
			c.dbgiStore = di
		}
	}
}

// WithTextStore plugs the text store collaborator, consulted for
// SourceLines annotations.
func WithTextStore(txt TextStore) Option {
	return func(c *config) {
		if txt != nil {
			c.textStore = txt
		}
	}
}

// WithFileWatch plugs the filesystem watch collaborator, consulted for
// SourceLines annotations and by the evictor/detector's re-enqueue rule.
func WithFileWatch(fs FileWatch) Option {
	return func(c *config) {
		if fs != nil {
			c.fileWatch = fs
		}
	}
}

// WithDecoder plugs the machine-code decoder. If unset, every request
// decodes to an empty instruction list (spec.md §7, "Unsupported
// architecture").
func WithDecoder(d Decoder) Option {
	return func(c *config) {
		if d != nil {
			c.decoder = d
		}
	}
}
