package document

import (
	"time"
)

const (
	GrantRead  = "read"
	GrantWrite = "write"
)

// Document is the persisted record: whole-content snapshot, not deltas.
type Document struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	OwnerID   string `gorm:"index" json:"owner_id"`
	IsPublic  bool   `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentGrant is an explicit share: unique per (document, user),
// re-granting overwrites the level. Only the owner creates or removes them.
type DocumentGrant struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	DocumentID  string `gorm:"uniqueIndex:idx_doc_grantee" json:"document_id"`
	UserID      string `gorm:"uniqueIndex:idx_doc_grantee" json:"user_id"`
	Level       string `json:"level"`
	GrantedByID string `json:"granted_by_id"`
	GrantedAt   time.Time `json:"granted_at"`
}

// DocumentOperation is an append-only audit row. Nothing reads it back;
// it exists for offline inspection only.
type DocumentOperation struct {
	ID         uint `gorm:"primaryKey"`
	DocumentID string `gorm:"index"`
	UserID     string
	Kind       string
	Payload    string
	CreatedAt  time.Time
}

// UpdateFields carries the mutable document attributes; nil means unchanged.
type UpdateFields struct {
	Title    *string
	Content  *string
	IsPublic *bool
}

// ListedDocument is a listing row pushed to connected clients.
type ListedDocument struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	IsPublic      bool      `json:"is_public"`
	OwnerID       string    `json:"owner_id"`
	OwnerUsername string    `json:"owner_username,omitempty"`
	Level         string    `json:"level,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GrantInfo describes one share of a document for the owner's share list.
type GrantInfo struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Level     string    `json:"level"`
	GrantedAt time.Time `json:"granted_at"`
}
