// Package chat keeps the client-side state of one conversation: the
// messages the service returned plus the user messages still waiting for
// a reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
)

// TitleLength is how many runes of the first question become the title.
const TitleLength = 50

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSendInFlight is returned while an earlier send has not finished.
	ErrSendInFlight = errors.New("a message is already being sent")
)

// Session is bound to one conversation.
type Session struct {
	client api.LexiconAPI
	id     string
	now    func() time.Time

	mu         sync.Mutex
	conv       *api.Conversation
	optimistic []api.Message
	sending    bool
}

// NewSession returns a Session for the conversation with the given id.
func NewSession(client api.LexiconAPI, conversationID string) *Session {
	return &Session{
		client: client,
		id:     conversationID,
		now:    time.Now,
	}
}

// ID returns the conversation id.
func (s *Session) ID() string {
	return s.id
}

// Load fetches the conversation from the service.
func (s *Session) Load(ctx context.Context) (*api.Conversation, error) {
	conv, err := s.client.GetConversation(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", s.id, err)
	}

	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()

	out := conv.Clone()
	return &out, nil
}

// Conversation returns the last loaded conversation, or nil before Load.
func (s *Session) Conversation() *api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	out := s.conv.Clone()
	return &out
}

// Messages returns the server messages followed by pending user messages.
func (s *Session) Messages() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []api.Message
	if s.conv != nil {
		for _, m := range s.conv.Messages {
			out = append(out, m.Clone())
		}
	}
	for _, m := range s.optimistic {
		out = append(out, m.Clone())
	}
	return out
}

// Pending reports whether a send is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Send posts text and returns the assistant reply. The user message shows
// in Messages until the reloaded conversation replaces it. A failed reload
// is not an error: the exchange is appended locally instead.
func (s *Session) Send(ctx context.Context, text string) (*api.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.sending = true
	s.optimistic = append(s.optimistic, api.Message{
		Role:      api.RoleUser,
		Content:   text,
		Citations: []api.Citation{},
		Timestamp: s.now(),
	})
	s.mu.Unlock()

	reply, err := s.client.SendMessage(ctx, s.id, text)
	if err != nil {
		s.mu.Lock()
		s.optimistic = nil
		s.sending = false
		s.mu.Unlock()
		return nil, fmt.Errorf("send message: %w", err)
	}

	conv, loadErr := s.client.GetConversation(ctx, s.id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if loadErr == nil {
		s.conv = conv
	} else {
		s.appendLocked(api.Message{Role: api.RoleUser, Content: text, Timestamp: s.now()}, *reply)
	}
	s.optimistic = nil
	s.sending = false
	return reply, nil
}

// appendLocked records a finished exchange when the reload failed. s.mu
// must be held.
func (s *Session) appendLocked(msgs ...api.Message) {
	if s.conv == nil {
		s.conv = &api.Conversation{ID: s.id}
	}
	s.conv.Messages = append(s.conv.Messages, msgs...)
}

// SendInitial sends text only if the conversation has no messages yet.
// Otherwise it returns nil, nil so a repeated call never double-posts.
func (s *Session) SendInitial(ctx context.Context, text string) (*api.Message, error) {
	s.mu.Lock()
	loaded := s.conv != nil
	s.mu.Unlock()

	if !loaded {
		if _, err := s.Load(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	empty := len(s.conv.Messages) == 0 && len(s.optimistic) == 0 && !s.sending
	s.mu.Unlock()
	if !empty {
		return nil, nil
	}
	return s.Send(ctx, text)
}

// Start creates a conversation named after question and sends it as the
// first message.
func Start(ctx context.Context, client api.LexiconAPI, question string) (*Session, *api.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyMessage
	}

	conv, err := client.CreateConversation(ctx, Title(question))
	if err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}

	s := NewSession(client, conv.ID)
	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()

	reply, err := s.SendInitial(ctx, question)
	if err != nil {
		return s, nil, err
	}
	return s, reply, nil
}

// Title returns the first TitleLength runes of question.
func Title(question string) string {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) <= TitleLength {
		return question
	}
	return string([]rune(question)[:TitleLength])
}

// Suggestions returns starter questions for an empty conversation.
func Suggestions() []string {
	return []string{
		"What is the punishment for theft in Westeros?",
		"What are the rules about succession and inheritance?",
		"What rights do guests have under Westerosi law?",
		"What are the marriage laws in Westeros?",
	}
}
