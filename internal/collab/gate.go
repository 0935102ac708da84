package collab

import (
	"collaborative-text-editor/internal/document"
	"context"
)

// Role is the effective permission of a user on a document.
type Role string

const (
	RoleOwner Role = "owner"
	RoleWrite Role = "write"
	RoleRead  Role = "read"
	RoleNone  Role = "none"
)

// CanEdit reports whether the role allows content/title mutation.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleWrite
}

// Gate resolves effective permissions against the persistence store. It is
// consulted on every privileged operation; results are never cached because
// grants and visibility can change between a user's actions.
type Gate struct {
	repo document.DocumentRepository
}

func NewGate(repo document.DocumentRepository) *Gate {
	return &Gate{repo: repo}
}

// Resolve returns the user's role and the document record. An absent
// document yields (RoleNone, nil, nil). A store failure yields a non-nil
// error and must not be treated as a denial.
func (g *Gate) Resolve(ctx context.Context, docID, userID string) (Role, *document.Document, error) {
	doc, err := g.repo.GetDocument(ctx, docID)
	if err != nil {
		return RoleNone, nil, err
	}
	if doc == nil {
		return RoleNone, nil, nil
	}

	if doc.OwnerID == userID {
		return RoleOwner, doc, nil
	}

	grant, err := g.repo.GetGrant(ctx, docID, userID)
	if err != nil {
		return RoleNone, nil, err
	}
	if grant != nil {
		switch grant.Level {
		case document.GrantWrite:
			return RoleWrite, doc, nil
		default:
			return RoleRead, doc, nil
		}
	}

	if doc.IsPublic {
		return RoleRead, doc, nil
	}

	return RoleNone, doc, nil
}
