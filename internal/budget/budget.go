// Package budget bounds the total number of provider calls one solve run may
// spend.
package budget

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ExceededError reports a charge that would push usage past the ceiling.
type ExceededError struct {
	Used int
	Max  int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("call budget exceeded: %d of %d used", e.Used, e.Max)
}

// IsExceeded reports whether err carries an ExceededError.
func IsExceeded(err error) bool {
	var ee *ExceededError
	return errors.As(err, &ee)
}

// Budget is a shared call counter. Safe for concurrent use.
type Budget struct {
	mu     sync.Mutex
	used   int
	max    int
	warnAt float64
	warned bool
	logger *slog.Logger
}

// Option configures a Budget.
type Option func(*Budget)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Budget) { b.logger = l }
}

// WithWarnAt sets the usage fraction (0-1) at which a warning is logged
// once. Zero disables the warning.
func WithWarnAt(frac float64) Option {
	return func(b *Budget) { b.warnAt = frac }
}

// New creates a budget of max calls. A non-positive max means unlimited.
func New(max int, opts ...Option) *Budget {
	b := &Budget{max: max, warnAt: 0.8}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Charge reserves n calls. It fails with *ExceededError without consuming
// anything when the reservation would cross the ceiling.
func (b *Budget) Charge(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.used+n > b.max {
		return &ExceededError{Used: b.used, Max: b.max}
	}
	b.used += n
	if b.max > 0 && b.warnAt > 0 && !b.warned &&
		float64(b.used) >= b.warnAt*float64(b.max) {
		b.warned = true
		b.logger.Warn("call budget running low", "used", b.used, "max", b.max)
	}
	return nil
}

// Used returns the calls consumed so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Max returns the ceiling, 0 meaning unlimited.
func (b *Budget) Max() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.max
}

// Remaining returns the calls left, or -1 for an unlimited budget.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max <= 0 {
		return -1
	}
	return b.max - b.used
}
