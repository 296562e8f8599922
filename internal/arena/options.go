package arena

// config collects every tunable of a constructed arena. It follows the same
// functional-options shape as the teacher's (now-removed)
// internal/allocator.Config/Option pair: a private struct with sane defaults,
// populated by a variadic chain of Option values before construction.
type config struct {
	capacity           uint32
	maximumAlignment   uint32
	minimumSegmentSize uint32
	maximumRetries     uint32
	unify              bool
	lock               bool
	shrinkOnDrop       bool
}

// Option configures a newly constructed Arena. See New, OpenFile,
// OpenFileReadOnly and NewAnonymousMapping.
type Option func(*config)

func defaultConfig() *config {
	return &config{
		maximumAlignment:   headerAlignment,
		minimumSegmentSize: defaultMinimumSegmentSize,
		maximumRetries:     32,
		unify:              true,
	}
}

// WithCapacity sets the number of usable data bytes the arena can hand out
// via AllocBytes/Alloc. The backing region is sized larger than this by
// whatever header placement overhead a unified layout needs (see WithUnify);
// callers never account for that overhead themselves. It is required for New
// and NewAnonymousMapping; OpenFile treats it as the data size to grow the
// file to if the file is smaller, and OpenFileReadOnly ignores it entirely,
// deriving capacity from the file's actual size.
func WithCapacity(capacity uint32) Option {
	return func(c *config) { c.capacity = capacity }
}

// WithMaximumAlignment sets the alignment guaranteed for the base of the data
// region (and therefore for the first byte returned to a caller who never
// asks for an aligned allocation explicitly). Must be a power of two.
func WithMaximumAlignment(align uint32) Option {
	return func(c *config) { c.maximumAlignment = align }
}

// WithMinimumSegmentSize sets the smallest freed segment the allocator will
// keep in the free-list instead of silently discarding. Segments smaller
// than this (after accounting for node-word padding) are still reclaimed as
// memory but never made available for reuse; IncreaseDiscarded / Discarded
// track how much has been lost this way.
func WithMinimumSegmentSize(size uint32) Option {
	return func(c *config) { c.minimumSegmentSize = size }
}

// WithMaximumRetries bounds how many times the free-list slow path will
// retry its compare-and-swap loop under contention before giving up; the
// allocation then fails with an *InsufficientSpaceError. It has no effect on the bump-allocation fast path, which always
// retries: a failed CAS there only ever means another goroutine just
// advanced the watermark, so the arena as a whole is still making progress.
// Zero means unbounded retries on the slow path too — a deliberate redesign
// from the reference implementation's fixed internal retry budget, made into
// a caller-visible, caller-tunable knob.
func WithMaximumRetries(n uint32) Option {
	return func(c *config) { c.maximumRetries = n }
}

// WithUnify controls whether the region header is stored inside the backing
// region itself (true, the default) or kept separately in process memory
// (false). File-backed and anonymous-mapping arenas always unify, since the
// header must live in the mapping; OpenFile, OpenFileReadOnly and
// NewAnonymousMapping reject WithUnify(false).
func WithUnify(unify bool) Option {
	return func(c *config) { c.unify = unify }
}

// WithLock requests an exclusive advisory file lock (flock) for the
// lifetime of a file-backed arena. Ignored by New and NewAnonymousMapping.
func WithLock(lock bool) Option {
	return func(c *config) { c.lock = lock }
}

// WithShrinkOnDrop requests that a file-backed arena be truncated down to
// its high-water allocation mark (allocated, not capacity) when the last
// handle is closed, instead of leaving the file at its full reserved size.
// Ignored by New and NewAnonymousMapping.
func WithShrinkOnDrop(shrink bool) Option {
	return func(c *config) { c.shrinkOnDrop = shrink }
}

func buildConfig(opts ...Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}
