package conversation

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/rand/descent/internal/taskpath"
)

// Status describes how a recorded message relates to the task currently
// being worked on.
type Status string

const (
	StatusInProgress      Status = "in_progress"
	StatusParentOfCurrent Status = "parent_of_current"
	StatusSubtaskResolved Status = "subtask_resolved"
	StatusResolved        Status = "resolved"
	StatusSiblingBranch   Status = "resolved_sibling_branch_not_relevant"
	StatusUnknown         Status = "unknown"
)

// PathDelta is the task-tree movement applied when a message is recorded.
type PathDelta int

const (
	DeltaNone PathDelta = iota
	DeltaSibling
	DeltaDescend
	DeltaAscend
)

// ErrEmptyHistory is returned when recording against a context with no
// messages.
var ErrEmptyHistory = errors.New("conversation: cannot record on an empty history")

// compactFloor is the body length below which a record counts as already
// compacted.
const compactFloor = 300

// Record binds one message to its position in the task tree. The message
// text is always regenerated from the record fields, never patched in place.
type Record struct {
	Path   taskpath.Path
	Status Status
	Type   string

	msg       *Message
	body      string
	compacted bool
}

func (r *Record) annotation() string {
	return fmt.Sprintf("Task %s [status=%q type=%q]", r.Path, string(r.Status), r.Type)
}

// render rewrites the bound message text as the annotation line followed by
// the body, indented one space per tree level.
func (r *Record) render() {
	r.msg.SetText(indent(r.annotation()+"\n"+r.body, r.Path.Depth()))
}

// Strategy selects which records of a type Compact rewrites.
type Strategy int

const (
	CompactAll Strategy = iota
	CompactFirst
	CompactLast
)

// RecordStore tracks which task each message of a context belongs to and
// maintains the status annotations embedded in the message texts.
type RecordStore struct {
	ctx     *Context
	records []*Record
	path    taskpath.Path
	logger  *slog.Logger
}

// NewRecordStore binds a store to a context.
func NewRecordStore(ctx *Context, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{ctx: ctx, logger: logger}
}

// CurrentPath returns a copy of the path the store currently points at.
func (s *RecordStore) CurrentPath() taskpath.Path {
	return s.path.Clone()
}

// Records returns the live record slice for inspection.
func (s *RecordStore) Records() []*Record {
	return s.records
}

// RecordLastMessage applies the path movement, then annotates the most
// recent message of the context with the resulting path, status and type.
func (s *RecordStore) RecordLastMessage(delta PathDelta, typ string, status Status) error {
	last := s.ctx.Last()
	if last == nil {
		return ErrEmptyHistory
	}
	switch delta {
	case DeltaNone:
	case DeltaSibling:
		if err := s.path.NextSibling(); err != nil {
			return err
		}
	case DeltaDescend:
		s.path.Descend()
	case DeltaAscend:
		if err := s.path.Ascend(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("conversation: unknown path delta %d", delta)
	}

	rec := &Record{
		Path:   s.path.Clone(),
		Status: status,
		Type:   typ,
		msg:    last,
		body:   dedent(last.Text()),
	}
	rec.render()
	s.records = append(s.records, rec)
	return nil
}

// Classify computes the status of a record at p relative to the current
// task at current.
func Classify(p, current taskpath.Path) Status {
	switch {
	case p.Equal(current):
		return StatusInProgress
	case p.IsPrefixOf(current):
		return StatusParentOfCurrent
	case current.IsPrefixOf(p):
		return StatusSubtaskResolved
	}
	ph, pok := p.Head()
	ch, cok := current.Head()
	if pok && cok && ph == ch {
		return StatusResolved
	}
	return StatusSiblingBranch
}

// RecomputeStatuses reclassifies every record against the current path and
// regenerates the affected message texts. The newest record's task is the
// one in progress.
func (s *RecordStore) RecomputeStatuses() {
	if len(s.records) == 0 {
		return
	}
	current := s.records[len(s.records)-1].Path
	for _, rec := range s.records {
		status := Classify(rec.Path, current)
		if status == rec.Status {
			continue
		}
		rec.Status = status
		rec.render()
	}
}

// Compact replaces the body of records of the given type with a shortened
// replacement, keeping their annotation lines intact. Records already
// compacted, or whose body is shorter than the compaction floor, are left
// alone. Returns the number of records rewritten.
func (s *RecordStore) Compact(typ, replacement string, strategy Strategy) int {
	var matched []*Record
	for _, rec := range s.records {
		if rec.Type == typ {
			matched = append(matched, rec)
		}
	}
	if len(matched) == 0 {
		s.logger.Debug("no records to compact", "type", typ)
		return 0
	}
	switch strategy {
	case CompactFirst:
		matched = matched[:1]
	case CompactLast:
		matched = matched[len(matched)-1:]
	}

	replaced := 0
	for _, rec := range matched {
		if rec.compacted || len(strings.TrimSpace(rec.body)) < compactFloor {
			continue
		}
		rec.body = replacement
		rec.compacted = true
		rec.render()
		replaced++
	}
	if replaced > 0 {
		s.logger.Debug("compacted records", "type", typ, "count", replaced)
	}
	return replaced
}

var (
	annotationPattern = regexp.MustCompile(`Task (\S+) \[status="([^"]*)" type="([^"]*)"\]`)
)

// Clone rebuilds a store bound to newCtx, re-associating records with the
// cloned messages by a role-plus-prefix signature. Messages whose signature
// is not found fall back to parsing the annotation line; messages with no
// annotation at all get no record.
func (s *RecordStore) Clone(newCtx *Context) *RecordStore {
	cloned := &RecordStore{
		ctx:    newCtx,
		path:   s.path.Clone(),
		logger: s.logger,
	}
	if len(s.records) == 0 || newCtx.Len() == 0 {
		return cloned
	}
	if newCtx.Len() != s.ctx.Len() {
		s.logger.Warn("cloned history length differs from source, records may be incomplete",
			"source", s.ctx.Len(), "clone", newCtx.Len())
	}

	bySig := make(map[uint64]*Record, len(s.records))
	for _, rec := range s.records {
		bySig[signature(rec.msg)] = rec
	}

	for _, msg := range newCtx.Messages() {
		if src, ok := bySig[signature(msg)]; ok {
			rec := &Record{
				Path:      src.Path.Clone(),
				Status:    src.Status,
				Type:      src.Type,
				msg:       msg,
				body:      src.body,
				compacted: src.compacted,
			}
			cloned.records = append(cloned.records, rec)
			continue
		}
		if rec, ok := recordFromAnnotation(msg); ok {
			cloned.records = append(cloned.records, rec)
			continue
		}
		s.logger.Debug("message carries no record, skipping", "role", string(msg.Role))
	}
	return cloned
}

// signature hashes a message's role plus the first 50 characters of its
// text. Good enough to re-bind records across a deep copy.
func signature(m *Message) uint64 {
	text := m.Text()
	if runes := []rune(text); len(runes) > 50 {
		text = string(runes[:50])
	}
	return xxh3.HashString(string(m.Role) + ":" + text)
}

// recordFromAnnotation reconstructs a record from the annotation line
// embedded in the message text.
func recordFromAnnotation(msg *Message) (*Record, bool) {
	m := annotationPattern.FindStringSubmatch(msg.Text())
	if m == nil {
		return nil, false
	}
	path, err := taskpath.Parse(m[1])
	if err != nil {
		return nil, false
	}
	rec := &Record{
		Path:   path,
		Status: Status(m[2]),
		Type:   m[3],
		msg:    msg,
	}
	body := dedent(msg.Text())
	if _, rest, found := strings.Cut(body, "\n"); found {
		rec.body = rest
	}
	return rec, true
}
