package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rand/descent/internal/taskpath"
)

func newStore(t *testing.T) (*Context, *RecordStore) {
	t.Helper()
	ctx, err := New(ModeSeedOnce, "")
	require.NoError(t, err)
	return ctx, NewRecordStore(ctx, nil)
}

func TestRecordOnEmptyHistory(t *testing.T) {
	_, store := newStore(t)
	err := store.RecordLastMessage(DeltaNone, "statement", StatusInProgress)
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestRecordAnnotatesLastMessage(t *testing.T) {
	ctx, store := newStore(t)
	require.NoError(t, ctx.AddUserMessage("solve this"))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "statement", StatusInProgress))

	text := ctx.Last().Text()
	assert.True(t, strings.HasPrefix(text, `Task original [status="in_progress" type="statement"]`))
	assert.Contains(t, text, "solve this")
}

func TestRecordDeltasMovePath(t *testing.T) {
	ctx, store := newStore(t)

	require.NoError(t, ctx.AddUserMessage("root"))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "statement", StatusInProgress))

	require.NoError(t, ctx.AddUserMessage("child"))
	require.NoError(t, store.RecordLastMessage(DeltaDescend, "statement", StatusInProgress))
	assert.Equal(t, "1.", store.CurrentPath().String())

	require.NoError(t, ctx.AddUserMessage("sibling"))
	require.NoError(t, store.RecordLastMessage(DeltaSibling, "statement", StatusInProgress))
	assert.Equal(t, "2.", store.CurrentPath().String())

	require.NoError(t, ctx.AddUserMessage("back up"))
	require.NoError(t, store.RecordLastMessage(DeltaAscend, "integrate", StatusInProgress))
	assert.True(t, store.CurrentPath().IsRoot())

	// Depth shows up as indentation.
	child := ctx.Messages()[1].Text()
	assert.True(t, strings.HasPrefix(child, " Task 1."))
}

func TestRecordDeltaErrorsAtRoot(t *testing.T) {
	ctx, store := newStore(t)
	require.NoError(t, ctx.AddUserMessage("root"))

	assert.ErrorIs(t, store.RecordLastMessage(DeltaSibling, "x", StatusInProgress), taskpath.ErrRootSibling)
	assert.ErrorIs(t, store.RecordLastMessage(DeltaAscend, "x", StatusInProgress), taskpath.ErrRootAscend)
	assert.Empty(t, store.Records())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		p, current taskpath.Path
		want       Status
	}{
		{taskpath.New(1, 2), taskpath.New(1, 2), StatusInProgress},
		{taskpath.New(), taskpath.New(1, 2), StatusParentOfCurrent},
		{taskpath.New(1), taskpath.New(1, 2), StatusParentOfCurrent},
		{taskpath.New(1, 2, 3), taskpath.New(1, 2), StatusSubtaskResolved},
		{taskpath.New(1, 3), taskpath.New(1, 2), StatusResolved},
		{taskpath.New(2, 1), taskpath.New(1, 2), StatusSiblingBranch},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.p, c.current), "%s vs %s", c.p, c.current)
	}
}

func TestClassifyPartitionProperty(t *testing.T) {
	gen := rapid.SliceOfN(rapid.IntRange(1, 3), 0, 4)
	rapid.Check(t, func(t *rapid.T) {
		p := taskpath.New(gen.Draw(t, "p")...)
		current := taskpath.New(gen.Draw(t, "current")...)

		status := Classify(p, current)
		switch {
		case p.Equal(current):
			assert.Equal(t, StatusInProgress, status)
		case p.IsPrefixOf(current):
			assert.Equal(t, StatusParentOfCurrent, status)
		case current.IsPrefixOf(p):
			assert.Equal(t, StatusSubtaskResolved, status)
		default:
			assert.Contains(t, []Status{StatusResolved, StatusSiblingBranch}, status)
		}
	})
}

func TestRecomputeStatusesRewritesAnnotations(t *testing.T) {
	ctx, store := newStore(t)

	require.NoError(t, ctx.AddUserMessage("root statement"))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "statement", StatusInProgress))
	require.NoError(t, ctx.AddUserMessage("subtask one"))
	require.NoError(t, store.RecordLastMessage(DeltaDescend, "statement", StatusInProgress))
	require.NoError(t, ctx.AddUserMessage("subtask two"))
	require.NoError(t, store.RecordLastMessage(DeltaSibling, "statement", StatusInProgress))

	store.RecomputeStatuses()

	msgs := ctx.Messages()
	assert.Contains(t, msgs[0].Text(), `status="parent_of_current"`)
	assert.Contains(t, msgs[1].Text(), `status="resolved"`)
	assert.Contains(t, msgs[2].Text(), `status="in_progress"`)

	// Idempotent.
	before := msgs[1].Text()
	store.RecomputeStatuses()
	assert.Equal(t, before, ctx.Messages()[1].Text())
}

func TestCompact(t *testing.T) {
	ctx, store := newStore(t)
	long := strings.Repeat("verify carefully. ", 30)

	require.NoError(t, ctx.AddUserMessage(long))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "verify", StatusInProgress))
	require.NoError(t, ctx.AddUserMessage("short prompt"))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "verify", StatusInProgress))

	n := store.Compact("verify", "check the draft", CompactAll)
	assert.Equal(t, 1, n, "short record is skipped")
	assert.Contains(t, ctx.Messages()[0].Text(), "check the draft")
	assert.Contains(t, ctx.Messages()[0].Text(), `type="verify"`)
	assert.Contains(t, ctx.Messages()[1].Text(), "short prompt")

	// Second pass finds nothing left to rewrite.
	assert.Equal(t, 0, store.Compact("verify", "check the draft", CompactAll))
}

func TestCompactStrategies(t *testing.T) {
	long := strings.Repeat("draft the solution now. ", 30)

	ctx, store := newStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, ctx.AddUserMessage(long))
		require.NoError(t, store.RecordLastMessage(DeltaNone, "draft", StatusInProgress))
	}

	assert.Equal(t, 1, store.Compact("draft", "short", CompactLast))
	assert.Contains(t, ctx.Messages()[2].Text(), "short")
	assert.NotContains(t, ctx.Messages()[0].Text(), "short")

	assert.Equal(t, 1, store.Compact("draft", "short", CompactFirst))
	assert.Contains(t, ctx.Messages()[0].Text(), "short")
}

func TestCompactUnknownType(t *testing.T) {
	ctx, store := newStore(t)
	require.NoError(t, ctx.AddUserMessage("hello"))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "statement", StatusInProgress))

	assert.Equal(t, 0, store.Compact("missing", "x", CompactAll))
}

func TestCloneRebindsRecords(t *testing.T) {
	ctx, store := newStore(t)

	require.NoError(t, ctx.AddUserMessage("root statement"))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "statement", StatusInProgress))
	require.NoError(t, ctx.AddUserMessage("child statement"))
	require.NoError(t, store.RecordLastMessage(DeltaDescend, "statement", StatusInProgress))

	ctxClone := ctx.Clone()
	storeClone := store.Clone(ctxClone)

	require.Len(t, storeClone.Records(), 2)
	assert.Equal(t, "1.", storeClone.Records()[1].Path.String())
	assert.Equal(t, store.CurrentPath().String(), storeClone.CurrentPath().String())

	// Mutations on the clone do not touch the source.
	require.NoError(t, ctxClone.AddUserMessage("only in clone"))
	require.NoError(t, storeClone.RecordLastMessage(DeltaSibling, "statement", StatusInProgress))
	assert.Len(t, store.Records(), 2)
	assert.Equal(t, "1.", store.CurrentPath().String())
}

func TestCloneFallsBackToAnnotationParse(t *testing.T) {
	ctx, store := newStore(t)
	require.NoError(t, ctx.AddUserMessage("original text"))
	require.NoError(t, store.RecordLastMessage(DeltaDescend, "statement", StatusInProgress))

	ctxClone := ctx.Clone()
	// Break the signature but keep the annotation line intact.
	ctxClone.Last().SetText(`Task 1. [status="resolved" type="statement"]` + "\nrewritten body")

	storeClone := store.Clone(ctxClone)
	require.Len(t, storeClone.Records(), 1)
	rec := storeClone.Records()[0]
	assert.Equal(t, "1.", rec.Path.String())
	assert.Equal(t, StatusResolved, rec.Status)
	assert.Equal(t, "statement", rec.Type)
}

func TestCloneSkipsUnannotatedMessages(t *testing.T) {
	ctx, store := newStore(t)
	require.NoError(t, ctx.AddUserMessage("recorded"))
	require.NoError(t, store.RecordLastMessage(DeltaNone, "statement", StatusInProgress))
	require.NoError(t, ctx.AddAssistantMessage("never recorded"))

	storeClone := store.Clone(ctx.Clone())
	assert.Len(t, storeClone.Records(), 1)
}

func TestDedentIndentRoundTrip(t *testing.T) {
	text := "line one\n  line two\n"
	assert.Equal(t, "  line one\n    line two\n", indent(text, 2))
	assert.Equal(t, text, dedent(indent(text, 3)))
}
