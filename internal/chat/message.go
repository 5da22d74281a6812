package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

type Part struct {
	Type  PartType `json:"type"`
	Text  string   `json:"text,omitempty"`
	Image string   `json:"image,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   []Part    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage builds a user turn carrying the question and, when given,
// the image it is about.
func NewUserMessage(text, imageURL string) Message {
	parts := make([]Part, 0, 2)
	if text != "" {
		parts = append(parts, Part{Type: PartText, Text: text})
	}
	if imageURL != "" {
		parts = append(parts, Part{Type: PartImage, Image: imageURL})
	}
	return newMessage(RoleUser, parts)
}

func NewSystemMessage(text string) Message {
	return newMessage(RoleSystem, []Part{{Type: PartText, Text: text}})
}

func newMessage(role Role, parts []Part) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   parts,
		Timestamp: time.Now().UTC(),
	}
}

// Text joins the text parts of a message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Type != PartText {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p.Text
	}
	return out
}
