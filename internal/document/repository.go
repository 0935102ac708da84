package document

import (
	"context"
	defError "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository is the persistence contract consumed by the
// collaboration layer. Absence is reported as a nil result, never as an
// error; any non-nil error is a transient store failure.
type DocumentRepository interface {
	Insert(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	Update(ctx context.Context, id string, fields UpdateFields) error
	DeleteDocumentCascade(ctx context.Context, id string) (bool, error)

	GetGrant(ctx context.Context, docID, userID string) (*DocumentGrant, error)
	UpsertGrant(ctx context.Context, grant *DocumentGrant) error
	DeleteGrant(ctx context.Context, docID, userID string) (bool, error)
	ListGrants(ctx context.Context, docID string) ([]GrantInfo, error)

	ListOwned(ctx context.Context, userID string) ([]ListedDocument, error)
	ListSharedWith(ctx context.Context, userID string) ([]ListedDocument, error)
	ListPublicExcluding(ctx context.Context, userID string, excludeIDs []string) ([]ListedDocument, error)

	RecordOperation(ctx context.Context, op *DocumentOperation) error
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new document repository
func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

func (r *DocumentRepositoryImpl) Insert(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepositoryImpl) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepositoryImpl) Update(ctx context.Context, id string, fields UpdateFields) error {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if fields.Title != nil {
		updates["title"] = *fields.Title
	}
	if fields.Content != nil {
		updates["content"] = *fields.Content
	}
	if fields.IsPublic != nil {
		updates["is_public"] = *fields.IsPublic
	}

	return r.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteDocumentCascade removes the document, its grants and its audit rows
// in a single transaction. Returns false when the document did not exist.
func (r *DocumentRepositoryImpl) DeleteDocumentCascade(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&DocumentGrant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&DocumentOperation{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&Document{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *DocumentRepositoryImpl) GetGrant(ctx context.Context, docID, userID string) (*DocumentGrant, error) {
	var grant DocumentGrant
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		First(&grant).Error
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *DocumentRepositoryImpl) UpsertGrant(ctx context.Context, grant *DocumentGrant) error {
	grant.GrantedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"level", "granted_by_id", "granted_at"}),
		}).
		Create(grant).Error
}

func (r *DocumentRepositoryImpl) DeleteGrant(ctx context.Context, docID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		Delete(&DocumentGrant{})
	return result.RowsAffected > 0, result.Error
}

func (r *DocumentRepositoryImpl) ListGrants(ctx context.Context, docID string) ([]GrantInfo, error) {
	var grants []GrantInfo
	err := r.db.WithContext(ctx).
		Table("document_grants").
		Select("document_grants.user_id, users.username, users.email, document_grants.level, document_grants.granted_at").
		Joins("JOIN users ON users.id = document_grants.user_id").
		Where("document_grants.document_id = ?", docID).
		Order("document_grants.granted_at DESC").
		Scan(&grants).Error
	return grants, err
}

func (r *DocumentRepositoryImpl) ListOwned(ctx context.Context, userID string) ([]ListedDocument, error) {
	var docs []ListedDocument
	err := r.db.WithContext(ctx).
		Model(&Document{}).
		Select("id, title, is_public, owner_id, created_at, updated_at").
		Where("owner_id = ?", userID).
		Order("updated_at DESC").
		Scan(&docs).Error
	return docs, err
}

func (r *DocumentRepositoryImpl) ListSharedWith(ctx context.Context, userID string) ([]ListedDocument, error) {
	var docs []ListedDocument
	err := r.db.WithContext(ctx).
		Table("documents").
		Select("documents.id, documents.title, documents.is_public, documents.owner_id, users.username AS owner_username, document_grants.level, documents.created_at, documents.updated_at").
		Joins("JOIN document_grants ON document_grants.document_id = documents.id").
		Joins("JOIN users ON users.id = documents.owner_id").
		Where("document_grants.user_id = ?", userID).
		Order("documents.updated_at DESC").
		Scan(&docs).Error
	return docs, err
}

func (r *DocumentRepositoryImpl) ListPublicExcluding(ctx context.Context, userID string, excludeIDs []string) ([]ListedDocument, error) {
	var docs []ListedDocument
	query := r.db.WithContext(ctx).
		Table("documents").
		Select("documents.id, documents.title, documents.is_public, documents.owner_id, users.username AS owner_username, documents.created_at, documents.updated_at").
		Joins("JOIN users ON users.id = documents.owner_id").
		Where("documents.is_public = ? AND documents.owner_id != ?", true, userID)
	if len(excludeIDs) > 0 {
		query = query.Where("documents.id NOT IN ?", excludeIDs)
	}
	err := query.Order("documents.updated_at DESC").Scan(&docs).Error
	return docs, err
}

func (r *DocumentRepositoryImpl) RecordOperation(ctx context.Context, op *DocumentOperation) error {
	op.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(op).Error
}
