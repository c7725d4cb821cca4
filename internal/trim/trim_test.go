package trim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rand/descent/internal/conversation"
	"github.com/rand/descent/internal/imageref"
)

func msg(role conversation.Role, text string) *conversation.Message {
	return conversation.NewMessage(role, text)
}

func long(word string) string {
	return strings.Repeat(word+" ", 100)
}

func TestUnderCeilingUntouched(t *testing.T) {
	msgs := []*conversation.Message{
		msg(conversation.RoleSystem, "sys"),
		msg(conversation.RoleUser, "hello"),
	}
	out := New().Trim(msgs, 1000)
	assert.Equal(t, msgs, out)
}

func TestInputSliceNotModified(t *testing.T) {
	msgs := []*conversation.Message{
		msg(conversation.RoleSystem, "sys"),
		msg(conversation.RoleUser, long("alpha")),
		msg(conversation.RoleUser, long("beta")),
	}
	tr := New()
	out := tr.Trim(msgs, tr.MessageCost(msgs[0])+tr.MessageCost(msgs[2])+10)

	assert.Len(t, msgs, 3)
	assert.Less(t, len(out), 3)
}

func TestDedupeRunsFirst(t *testing.T) {
	dup := long("rules")
	msgs := []*conversation.Message{
		msg(conversation.RoleSystem, "head"),
		msg(conversation.RoleSystem, dup),
		msg(conversation.RoleUser, "question"),
		msg(conversation.RoleSystem, dup),
	}
	tr := New()
	ceiling := tr.TotalCost(msgs) - tr.MessageCost(msgs[1])

	out := tr.Trim(msgs, ceiling)
	require.Len(t, out, 3)
	// The earlier duplicate goes, the later position survives.
	assert.Equal(t, "question", out[1].Text())
	assert.Equal(t, dup, out[2].Text())
}

func TestEvictsOldestUnprotected(t *testing.T) {
	msgs := []*conversation.Message{
		msg(conversation.RoleSystem, "head"),
		msg(conversation.RoleUser, long("oldest")),
		msg(conversation.RoleAssistant, long("middle")),
		msg(conversation.RoleUser, "newest"),
	}
	tr := New()
	ceiling := tr.MessageCost(msgs[0]) + tr.MessageCost(msgs[3]) + DefaultCostModel().PerReply

	out := tr.Trim(msgs, ceiling)
	require.Len(t, out, 2)
	assert.Equal(t, "head", out[0].Text())
	assert.Equal(t, "newest", out[1].Text())
}

func TestHeadProtectedOnlyWhenSystem(t *testing.T) {
	msgs := []*conversation.Message{
		msg(conversation.RoleUser, long("first")),
		msg(conversation.RoleUser, "second"),
	}
	tr := New()
	out := tr.Trim(msgs, tr.MessageCost(msgs[1])+10)
	require.Len(t, out, 1)
	assert.Equal(t, "second", out[0].Text())
}

func TestTailSystemSacrifice(t *testing.T) {
	msgs := []*conversation.Message{
		msg(conversation.RoleSystem, "head"),
		msg(conversation.RoleSystem, long("late rules")),
	}
	tr := New()
	// Only one unprotected message remains, so the oldest-first pass cannot
	// run; the tail system message is sacrificed instead.
	ceiling := tr.MessageCost(msgs[0]) + DefaultCostModel().PerReply

	out := tr.Trim(msgs, ceiling)
	require.Len(t, out, 1)
	assert.Equal(t, "head", out[0].Text())
}

func TestSoftWarnKeepsRemainder(t *testing.T) {
	msgs := []*conversation.Message{
		msg(conversation.RoleSystem, "head"),
		msg(conversation.RoleUser, long("huge")),
	}
	out := New().Trim(msgs, 1)
	// Nothing left to evict; the call proceeds with what remains.
	require.Len(t, out, 2)
}

func TestObserverSeesEvicted(t *testing.T) {
	var got []*conversation.Message
	tr := New(WithObserver(func(evicted []*conversation.Message) { got = evicted }))

	msgs := []*conversation.Message{
		msg(conversation.RoleSystem, "head"),
		msg(conversation.RoleUser, long("oldest")),
		msg(conversation.RoleUser, "newest"),
	}
	tr.Trim(msgs, tr.MessageCost(msgs[0])+tr.MessageCost(msgs[2])+10)

	require.Len(t, got, 1)
	assert.Equal(t, long("oldest"), got[0].Text())
}

func TestImageCostCounted(t *testing.T) {
	tr := New()
	m := msg(conversation.RoleUser, "see")
	m.Content = append(m.Content, conversation.Part{
		Image: &imageref.Attachment{URL: "https://example.com/a.png", Detail: "low"},
	})
	assert.Equal(t, tr.MessageCost(msg(conversation.RoleUser, "see"))+DefaultCostModel().PerImage,
		tr.MessageCost(m))
}

func TestTrimNeverGrows(t *testing.T) {
	tr := New()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(t, "n")
		msgs := make([]*conversation.Message, 0, n)
		for i := 0; i < n; i++ {
			role := rapid.SampledFrom([]conversation.Role{
				conversation.RoleSystem, conversation.RoleUser, conversation.RoleAssistant,
			}).Draw(t, "role")
			words := rapid.IntRange(0, 60).Draw(t, "words")
			msgs = append(msgs, msg(role, strings.Repeat("w ", words)))
		}
		ceiling := rapid.IntRange(0, 400).Draw(t, "ceiling")

		out := tr.Trim(msgs, ceiling)
		assert.LessOrEqual(t, len(out), len(msgs))
		assert.LessOrEqual(t, tr.TotalCost(out), tr.TotalCost(msgs))
	})
}
