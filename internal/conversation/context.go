// Package conversation holds the message history shared between provider
// calls, together with the record store that annotates each message with the
// task-tree position it belongs to.
package conversation

import (
	"errors"
	"fmt"

	"github.com/rand/descent/internal/imageref"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mode controls how the standing instruction is injected into the history.
type Mode int

const (
	// ModeReset clears the history before every user message and re-seeds
	// the standing instruction.
	ModeReset Mode = 1

	// ModeSeedOnce seeds the standing instruction once at the start and
	// keeps the full history afterwards.
	ModeSeedOnce Mode = 2

	// ModeSeedEachTurn keeps the full history and re-injects the standing
	// instruction before every user message.
	ModeSeedEachTurn Mode = 3
)

// ErrInvalidMode is returned for a mode outside 1..3.
var ErrInvalidMode = errors.New("conversation: mode must be 1, 2 or 3")

// Part is one element of a message body: text or an image attachment.
type Part struct {
	Text  string
	Image *imageref.Attachment
}

// Message is one entry in the history. Content always starts with a text
// part; images follow.
type Message struct {
	Role    Role
	Content []Part
}

// NewMessage builds a message with a leading text part.
func NewMessage(role Role, text string) *Message {
	return &Message{Role: role, Content: []Part{{Text: text}}}
}

// Text returns the leading text part.
func (m *Message) Text() string {
	if len(m.Content) == 0 {
		return ""
	}
	return m.Content[0].Text
}

// SetText replaces the leading text part, preserving any attachments.
func (m *Message) SetText(text string) {
	if len(m.Content) == 0 {
		m.Content = []Part{{Text: text}}
		return
	}
	m.Content[0].Text = text
}

// Images returns the attachments carried by the message.
func (m *Message) Images() []*imageref.Attachment {
	var out []*imageref.Attachment
	for _, p := range m.Content {
		if p.Image != nil {
			out = append(out, p.Image)
		}
	}
	return out
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := &Message{Role: m.Role, Content: make([]Part, len(m.Content))}
	for i, p := range m.Content {
		c.Content[i] = Part{Text: p.Text, Image: p.Image.Clone()}
	}
	return c
}

// Context is the conversation history fed to provider calls.
type Context struct {
	mode        Mode
	instruction string
	loader      *imageref.Loader
	messages    []*Message
}

// New creates a context with the given injection mode and standing
// instruction. The instruction may be empty.
func New(mode Mode, instruction string) (*Context, error) {
	if mode < ModeReset || mode > ModeSeedEachTurn {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMode, mode)
	}
	return &Context{
		mode:        mode,
		instruction: instruction,
		loader:      imageref.NewLoader(),
	}, nil
}

// Mode returns the current injection mode.
func (c *Context) Mode() Mode {
	return c.mode
}

// SetMode switches the injection mode for subsequent appends.
func (c *Context) SetMode(mode Mode) error {
	if mode < ModeReset || mode > ModeSeedEachTurn {
		return fmt.Errorf("%w: got %d", ErrInvalidMode, mode)
	}
	c.mode = mode
	return nil
}

// Instruction returns the standing instruction.
func (c *Context) Instruction() string {
	return c.instruction
}

// SetStandingInstruction replaces the standing instruction used for future
// injections. In seed-once mode with existing history the new instruction is
// appended as a fresh system message rather than mutating earlier ones.
func (c *Context) SetStandingInstruction(instruction string) {
	c.instruction = instruction
	if c.mode == ModeSeedOnce && len(c.messages) > 0 {
		c.messages = append(c.messages, NewMessage(RoleSystem, instruction))
	}
}

// BuildMessage resolves images and assembles a message without appending it
// to the history. Any image failure is a *imageref.ResourceError.
func (c *Context) BuildMessage(role Role, text string, images ...string) (*Message, error) {
	msg := NewMessage(role, text)
	for _, ref := range images {
		att, err := c.loader.Resolve(ref, "low")
		if err != nil {
			return nil, err
		}
		a := att
		msg.Content = append(msg.Content, Part{Image: &a})
	}
	return msg, nil
}

// AddUserMessage appends a user message according to the injection mode.
func (c *Context) AddUserMessage(text string, images ...string) error {
	msg, err := c.BuildMessage(RoleUser, text, images...)
	if err != nil {
		return err
	}
	switch c.mode {
	case ModeReset:
		c.messages = c.messages[:0]
		if c.instruction != "" {
			c.messages = append(c.messages, NewMessage(RoleSystem, c.instruction))
		}
	case ModeSeedOnce:
		if c.instruction != "" && len(c.messages) == 0 {
			c.messages = append(c.messages, NewMessage(RoleSystem, c.instruction))
		}
	case ModeSeedEachTurn:
		if c.instruction != "" {
			c.messages = append(c.messages, NewMessage(RoleSystem, c.instruction))
		}
	}
	c.messages = append(c.messages, msg)
	return nil
}

// AddAssistantMessage appends an assistant message. Assistant appends never
// trigger instruction injection or history resets.
func (c *Context) AddAssistantMessage(text string, images ...string) error {
	msg, err := c.BuildMessage(RoleAssistant, text, images...)
	if err != nil {
		return err
	}
	// Seed-once still needs the instruction in front if the very first
	// append is an assistant message.
	if c.mode == ModeSeedOnce && c.instruction != "" && len(c.messages) == 0 {
		c.messages = append(c.messages, NewMessage(RoleSystem, c.instruction))
	}
	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns a copy of the history slice. The messages themselves are
// shared; callers that mutate them must clone first.
func (c *Context) Messages() []*Message {
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the history.
func (c *Context) Len() int {
	return len(c.messages)
}

// Last returns the most recent message, or nil for an empty history.
func (c *Context) Last() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// Clone returns an independent deep copy of the context.
func (c *Context) Clone() *Context {
	cloned := &Context{
		mode:        c.mode,
		instruction: c.instruction,
		loader:      c.loader,
		messages:    make([]*Message, len(c.messages)),
	}
	for i, m := range c.messages {
		cloned.messages[i] = m.Clone()
	}
	return cloned
}
