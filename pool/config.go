package pool

import (
	"log"
	"os"
)

// MinStdSize is MEMBLOCK_MINIMUM: the smallest standard block size a
// Context will accept. Below this a block could not hold both its header
// and a single memtree node, so the bump allocator would never make
// forward progress.
const MinStdSize = 256

// DefaultStdSize is the standard block size used when a Context is created
// with Config.StdSize left at zero.
const DefaultStdSize = 8192

// Alignment is the machine alignment every Alloc result is rounded up to.
// The spec requires at least 4; we use 8 to match the teacher's default
// WASM pointer alignment (internal/wasm/allocator.go's defaultAlignment).
const Alignment = 8

// OOMDecision is returned by an OOMHandler when a raw allocation fails.
type OOMDecision int

const (
	// OOMRetry asks the context to retry the raw allocation.
	OOMRetry OOMDecision = iota
	// OOMFail asks the context to return a nil block to the caller.
	OOMFail
	// OOMAbort terminates the process. This is the default.
	OOMAbort
)

// OOMHandler decides what a Context does when raw_alloc(amt) fails.
type OOMHandler func(amt uint32) OOMDecision

// AbortOnOOM is the default OOMHandler: it never retries or fails softly.
func AbortOnOOM(amt uint32) OOMDecision { return OOMAbort }

// maxOOMRetries bounds OOMRetry loops so a misbehaving handler cannot spin
// the process forever.
const maxOOMRetries = 8

// Config holds Context construction options, grounded on the teacher's
// MemoryConfig / DefaultMemoryConfig pair (internal/wasm/memory.go).
type Config struct {
	// StdSize is the standard block size in bytes. Zero means
	// DefaultStdSize; values below MinStdSize are clamped up to it.
	StdSize uint32

	// OOMHandler is invoked when raw allocation fails. Nil means
	// AbortOnOOM.
	OOMHandler OOMHandler

	// TrackUnhandled controls whether created errors are linked onto the
	// context's unhandled list (Error lifecycle).
	TrackUnhandled bool

	// Tracing controls whether Trace materializes TRACE records or is a
	// no-op passthrough.
	Tracing bool

	// Logger receives OOM diagnostics and the unhandled-error teardown
	// notification (spec §4.2, §7). Defaults to a logger writing to
	// os.Stderr with the "pocore: " prefix.
	Logger *log.Logger

	// Debug enables the poisoned-pointer trap described in spec §7: use
	// of a pool after Destroy panics instead of returning ErrPoolDestroyed.
	// Grounded on the teacher's EnableDebugMode config knob
	// (internal/wasm/memory.go's MemoryConfig).
	Debug bool
}

// Option mutates a Config during Context construction.
type Option func(*Config)

// WithStdSize overrides the standard block size.
func WithStdSize(n uint32) Option {
	return func(c *Config) { c.StdSize = n }
}

// WithOOMHandler overrides the out-of-memory policy.
func WithOOMHandler(h OOMHandler) Option {
	return func(c *Config) { c.OOMHandler = h }
}

// WithTrackUnhandled toggles unhandled-error tracking.
func WithTrackUnhandled(track bool) Option {
	return func(c *Config) { c.TrackUnhandled = track }
}

// WithTracing toggles wrap-trace record materialization.
func WithTracing(trace bool) Option {
	return func(c *Config) { c.Tracing = trace }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithDebug enables the poisoned-pointer use-after-destroy trap.
func WithDebug(debug bool) Option {
	return func(c *Config) { c.Debug = debug }
}

// DefaultConfig returns the spec's built-in defaults: an 8192-byte standard
// block, abort-on-OOM, and unhandled-error tracking enabled.
func DefaultConfig() Config {
	return Config{
		StdSize:        DefaultStdSize,
		OOMHandler:     AbortOnOOM,
		TrackUnhandled: true,
		Tracing:        false,
		Logger:         log.New(os.Stderr, "pocore: ", log.LstdFlags),
	}
}

func resolveConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.StdSize == 0 {
		cfg.StdSize = DefaultStdSize
	}
	if cfg.StdSize < MinStdSize {
		cfg.StdSize = MinStdSize
	}
	if cfg.OOMHandler == nil {
		cfg.OOMHandler = AbortOnOOM
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "pocore: ", log.LstdFlags)
	}
	return cfg
}
