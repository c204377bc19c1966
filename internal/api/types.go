package api

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lexicon-labs/lexicon-cli/internal/sections"
)

const (
	// RoleUser marks messages written by the user.
	RoleUser = "user"
	// RoleAssistant marks generated answers.
	RoleAssistant = "assistant"

	// DefaultConversationTitle is what the service names untitled conversations.
	DefaultConversationTitle = "New Conversation"
	// MaxTitleLength bounds conversation titles sent to the service.
	MaxTitleLength = 200
)

// DocumentListResponse is the body of GET /documents.
type DocumentListResponse struct {
	Total     int                    `json:"total"`
	Documents []sections.FlatSection `json:"documents"`
}

// DocumentMetadata describes where a document sits in the corpus.
type DocumentMetadata struct {
	Section          string `json:"section"`
	MainSection      string `json:"main_section"`
	SubsectionNumber string `json:"subsection_number"`
}

// DocumentDetail is a single document with its full text.
type DocumentDetail struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// Citation points from an answer back to a source section.
type Citation struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// QueryOutput is the body of GET /query.
type QueryOutput struct {
	Query     string     `json:"query"`
	Response  string     `json:"response"`
	Citations []Citation `json:"citations"`
}

// Message is one turn of a conversation.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
	Timestamp time.Time  `json:"timestamp"`
}

// Conversation is a titled list of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationList is the body of GET /conversations.
type ConversationList struct {
	Total         int            `json:"total"`
	Conversations []Conversation `json:"conversations"`
}

// Health is the body of GET /health.
type Health struct {
	Status             string `json:"status"`
	ServiceInitialized bool   `json:"service_initialized"`
}

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// Validate checks the request before it is sent.
func (r CreateConversationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.Required,
			validation.RuneLength(1, MaxTitleLength),
		),
	)
}

// SendMessageRequest is the body of POST /conversations/{id}/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// Validate checks the request before it is sent.
func (r SendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.By(notBlank)),
	)
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Citations != nil {
		out.Citations = append([]Citation(nil), m.Citations...)
	}
	return out
}
