package cmd

import (
	"context"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
)

type fakeClient struct {
	HealthFunc               func() (*api.Health, error)
	ListDocumentsFunc        func() (*api.DocumentListResponse, error)
	GetDocumentFunc          func(string) (*api.DocumentDetail, error)
	GetDocumentBySectionFunc func(string) (*api.DocumentDetail, error)
	QueryFunc                func(string) (*api.QueryOutput, error)
	ListConversationsFunc    func() (*api.ConversationList, error)
	CreateConversationFunc   func(string) (*api.Conversation, error)
	GetConversationFunc      func(string) (*api.Conversation, error)
	SendMessageFunc          func(string, string) (*api.Message, error)
	DeleteConversationFunc   func(string) error
	RenameConversationFunc   func(string, string) (*api.Conversation, error)
}

func (f *fakeClient) Health(ctx context.Context) (*api.Health, error) {
	if f.HealthFunc != nil {
		return f.HealthFunc()
	}
	return &api.Health{Status: "ok", ServiceInitialized: true}, nil
}

func (f *fakeClient) ListDocuments(ctx context.Context) (*api.DocumentListResponse, error) {
	if f.ListDocumentsFunc != nil {
		return f.ListDocumentsFunc()
	}
	return &api.DocumentListResponse{}, nil
}

func (f *fakeClient) GetDocument(ctx context.Context, id string) (*api.DocumentDetail, error) {
	if f.GetDocumentFunc != nil {
		return f.GetDocumentFunc(id)
	}
	return nil, api.NotFoundError{Message: "document not found"}
}

func (f *fakeClient) GetDocumentBySection(ctx context.Context, sectionNumber string) (*api.DocumentDetail, error) {
	if f.GetDocumentBySectionFunc != nil {
		return f.GetDocumentBySectionFunc(sectionNumber)
	}
	return nil, api.NotFoundError{Message: "section not found"}
}

func (f *fakeClient) Query(ctx context.Context, q string) (*api.QueryOutput, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(q)
	}
	return &api.QueryOutput{Query: q}, nil
}

func (f *fakeClient) ListConversations(ctx context.Context) (*api.ConversationList, error) {
	if f.ListConversationsFunc != nil {
		return f.ListConversationsFunc()
	}
	return &api.ConversationList{}, nil
}

func (f *fakeClient) CreateConversation(ctx context.Context, title string) (*api.Conversation, error) {
	if f.CreateConversationFunc != nil {
		return f.CreateConversationFunc(title)
	}
	return &api.Conversation{ID: "conv-1", Title: title}, nil
}

func (f *fakeClient) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	if f.GetConversationFunc != nil {
		return f.GetConversationFunc(id)
	}
	return &api.Conversation{ID: id}, nil
}

func (f *fakeClient) SendMessage(ctx context.Context, conversationID, message string) (*api.Message, error) {
	if f.SendMessageFunc != nil {
		return f.SendMessageFunc(conversationID, message)
	}
	return &api.Message{Role: api.RoleAssistant}, nil
}

func (f *fakeClient) DeleteConversation(ctx context.Context, id string) error {
	if f.DeleteConversationFunc != nil {
		return f.DeleteConversationFunc(id)
	}
	return nil
}

func (f *fakeClient) RenameConversation(ctx context.Context, id, title string) (*api.Conversation, error) {
	if f.RenameConversationFunc != nil {
		return f.RenameConversationFunc(id, title)
	}
	return &api.Conversation{ID: id, Title: title}, nil
}

var _ api.LexiconAPI = (*fakeClient)(nil)
