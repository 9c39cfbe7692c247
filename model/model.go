package model

import (
	"encoding/json"
	"strings"
)

// Kind names a single line-level edit.
type Kind string

const (
	Replace     Kind = "Replace"
	Delete      Kind = "Delete"
	InsertAfter Kind = "InsertAfter"
)

// Valid reports whether k is one of the known edit kinds.
func (k Kind) Valid() bool {
	switch k {
	case Replace, Delete, InsertAfter:
		return true
	}
	return false
}

// ParseKind maps an operation name to a Kind, ignoring case. Unknown names
// are returned as-is so the patcher can reject them.
func ParseKind(name string) Kind {
	for _, k := range []Kind{Replace, Delete, InsertAfter} {
		if strings.EqualFold(name, string(k)) {
			return k
		}
	}
	return Kind(name)
}

// EditOperation is one mutation addressed to a line of the original buffer.
type EditOperation struct {
	Kind Kind
	// Line is 1-based and always refers to the pre-patch numbering.
	Line int
	// Content is ignored for Delete.
	Content string
}

// Entry is one element of a model response: either an edit or commentary.
type Entry struct {
	Edit        *EditOperation
	Explanation string
}

// IsEdit reports whether the entry carries an edit operation.
func (e Entry) IsEdit() bool { return e.Edit != nil }

// Batch holds the raw objects of a single parsed model response.
type Batch []json.RawMessage

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered message history sent to the model.
type Conversation struct {
	Messages []Message
}

// NewConversation starts a conversation with a system and a user turn.
func NewConversation(system, user string) *Conversation {
	return &Conversation{Messages: []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}}
}

func (c *Conversation) Append(role Role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}

// Last returns the most recent message, or the zero Message.
func (c *Conversation) Last() Message {
	if len(c.Messages) == 0 {
		return Message{}
	}
	return c.Messages[len(c.Messages)-1]
}

// Summary holds the results of a session for display.
type Summary struct {
	Target   string
	Cycles   int
	Output   string
	Reverted bool
	Declined bool
	Message  string
}

// Join concatenates lines that already carry their terminators.
func Join(lines []string) string {
	return strings.Join(lines, "")
}
