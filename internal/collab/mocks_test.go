package collab

import (
	"collaborative-text-editor/internal/document"
	"collaborative-text-editor/internal/user"
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock implementation of document.DocumentRepository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Insert(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, id string, fields document.UpdateFields) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockRepository) DeleteDocumentCascade(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) GetGrant(ctx context.Context, docID, userID string) (*document.DocumentGrant, error) {
	args := m.Called(ctx, docID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.DocumentGrant), args.Error(1)
}

func (m *MockRepository) UpsertGrant(ctx context.Context, grant *document.DocumentGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockRepository) DeleteGrant(ctx context.Context, docID, userID string) (bool, error) {
	args := m.Called(ctx, docID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListGrants(ctx context.Context, docID string) ([]document.GrantInfo, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.GrantInfo), args.Error(1)
}

func (m *MockRepository) ListOwned(ctx context.Context, userID string) ([]document.ListedDocument, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.ListedDocument), args.Error(1)
}

func (m *MockRepository) ListSharedWith(ctx context.Context, userID string) ([]document.ListedDocument, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.ListedDocument), args.Error(1)
}

func (m *MockRepository) ListPublicExcluding(ctx context.Context, userID string, excludeIDs []string) ([]document.ListedDocument, error) {
	args := m.Called(ctx, userID, excludeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.ListedDocument), args.Error(1)
}

func (m *MockRepository) RecordOperation(ctx context.Context, op *document.DocumentOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

// MockUsers is a mock implementation of UserDirectory
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}
