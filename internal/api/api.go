package api

import "context"

// LexiconAPI defines the operations the CLI needs from the legal Q&A
// service. The HTTP Client and the caching wrapper both implement it, so
// commands work with either.
type LexiconAPI interface {
	// Health reports whether the service is up.
	Health(ctx context.Context) (*Health, error)

	// Documents

	// ListDocuments returns the flat section list.
	ListDocuments(ctx context.Context) (*DocumentListResponse, error)

	// GetDocument returns a document by id, or NotFoundError.
	GetDocument(ctx context.Context, id string) (*DocumentDetail, error)

	// GetDocumentBySection returns a document by dot-key, or NotFoundError.
	GetDocumentBySection(ctx context.Context, sectionNumber string) (*DocumentDetail, error)

	// Query asks a one-off question. An empty question is a ValidationError.
	Query(ctx context.Context, q string) (*QueryOutput, error)

	// Conversations

	// ListConversations returns conversations, most recently updated first.
	ListConversations(ctx context.Context) (*ConversationList, error)

	// CreateConversation starts a conversation. An empty title uses the
	// service default.
	CreateConversation(ctx context.Context, title string) (*Conversation, error)

	// GetConversation returns a conversation with its messages.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// SendMessage posts a user message and returns the assistant's reply.
	SendMessage(ctx context.Context, conversationID, message string) (*Message, error)

	// DeleteConversation removes a conversation.
	DeleteConversation(ctx context.Context, id string) error

	// RenameConversation changes a conversation's title.
	RenameConversation(ctx context.Context, id, title string) (*Conversation, error)
}
