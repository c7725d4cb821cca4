// Package trim shrinks a turn's message list under a token ceiling before a
// provider call. The stored conversation is never modified; callers hand in
// the slice copy they are about to send.
package trim

import (
	"log/slog"
	"strings"

	"github.com/rand/descent/internal/conversation"
)

// CostModel prices one message for ceiling accounting.
type CostModel struct {
	// PerMessage is the fixed framing overhead per message.
	PerMessage int
	// PerImage is the flat cost charged for each attached image.
	PerImage int
	// PerReply is the overhead reserved once per request for the reply
	// priming.
	PerReply int
}

// DefaultCostModel returns the model used when none is configured.
func DefaultCostModel() CostModel {
	return CostModel{PerMessage: 3, PerImage: 2840, PerReply: 3}
}

// EstimateText approximates the token count of a text fragment.
func EstimateText(s string) int {
	return int(float64(len(strings.Fields(s))) * 1.3)
}

// Trimmer evicts messages until a list fits a token ceiling.
type Trimmer struct {
	cost   CostModel
	logger *slog.Logger
	onTrim func(evicted []*conversation.Message)
}

// Option configures a Trimmer.
type Option func(*Trimmer)

// WithCostModel overrides the default cost model.
func WithCostModel(cm CostModel) Option {
	return func(t *Trimmer) { t.cost = cm }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trimmer) { t.logger = l }
}

// WithObserver registers a callback invoked with the evicted messages after
// each trim that removed anything.
func WithObserver(fn func(evicted []*conversation.Message)) Option {
	return func(t *Trimmer) { t.onTrim = fn }
}

// New builds a trimmer.
func New(opts ...Option) *Trimmer {
	t := &Trimmer{cost: DefaultCostModel()}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// MessageCost prices a single message.
func (t *Trimmer) MessageCost(m *conversation.Message) int {
	cost := t.cost.PerMessage + EstimateText(m.Text())
	cost += len(m.Images()) * t.cost.PerImage
	return cost
}

// TotalCost prices a whole request.
func (t *Trimmer) TotalCost(msgs []*conversation.Message) int {
	total := t.cost.PerReply
	for _, m := range msgs {
		total += t.MessageCost(m)
	}
	return total
}

// Trim returns a message list fitting the ceiling, or the best achievable
// subset with a warning when even that is too large. The input slice is not
// modified. Ordering of survivors is preserved.
func (t *Trimmer) Trim(msgs []*conversation.Message, ceiling int) []*conversation.Message {
	out := make([]*conversation.Message, len(msgs))
	copy(out, msgs)
	if t.TotalCost(out) <= ceiling {
		return out
	}

	var evicted []*conversation.Message
	evict := func(i int) {
		evicted = append(evicted, out[i])
		out = append(out[:i], out[i+1:]...)
	}

	// Index 0 is protected only when it is the seeded system message.
	protected := 0
	if len(out) > 0 && out[0].Role == conversation.RoleSystem {
		protected = 1
	}

	// Duplicated system messages carry no information; drop the earlier
	// occurrence so the later position wins.
	for t.TotalCost(out) > ceiling {
		dup := -1
	scan:
		for i := protected; i < len(out); i++ {
			if out[i].Role != conversation.RoleSystem {
				continue
			}
			for j := i + 1; j < len(out); j++ {
				if out[j].Role == conversation.RoleSystem && out[j].Text() == out[i].Text() {
					dup = i
					break scan
				}
			}
		}
		if dup < 0 {
			break
		}
		evict(dup)
	}

	// Favor recency: drop the oldest unprotected message while more than
	// one remains.
	for t.TotalCost(out) > ceiling && len(out)-protected > 1 {
		evict(protected)
	}

	// Last resort: sacrifice system messages from the tail backward.
	for i := len(out) - 1; i >= protected && t.TotalCost(out) > ceiling; i-- {
		if out[i].Role != conversation.RoleSystem {
			continue
		}
		evict(i)
	}

	if total := t.TotalCost(out); total > ceiling {
		t.logger.Warn("message list still over ceiling after trimming",
			"total", total, "ceiling", ceiling, "messages", len(out))
	}
	if len(evicted) > 0 {
		t.logger.Debug("trimmed messages", "evicted", len(evicted), "kept", len(out))
		if t.onTrim != nil {
			t.onTrim(evicted)
		}
	}
	return out
}
