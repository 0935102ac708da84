package collab

import (
	"collaborative-text-editor/internal/document"
	"encoding/json"
	"fmt"
)

// Event names accepted from clients.
const (
	EvAuthenticate      = "authenticate"
	EvGetDocuments      = "get-documents"
	EvCreateDocument    = "create-document"
	EvJoinDocument      = "join-document"
	EvGetDocument       = "get-document"
	EvLeaveDocument     = "leave-document"
	EvTextChange        = "text-change"
	EvTitleChange       = "title-change"
	EvCursorPosition    = "cursor-position"
	EvToggleVisibility  = "toggle-document-visibility"
	EvDeleteDocument    = "delete-document"
	EvShareDocument     = "share-document"
	EvUnshareDocument   = "unshare-document"
	EvGetDocumentShares = "get-document-shares"
)

// Event names emitted to clients.
const (
	EvAuthenticated     = "authenticated"
	EvAuthError         = "auth-error"
	EvDocumentError     = "document-error"
	EvDocumentsList     = "documents-list"
	EvDocumentCreated   = "document-created"
	EvDocumentContent   = "document-content"
	EvDocumentData      = "document-data"
	EvUserJoined        = "user-joined"
	EvUserLeft          = "user-left"
	EvUsersUpdate       = "users-update"
	EvCursorRemoved     = "cursor-removed"
	EvVisibilityUpdated = "document-visibility-updated"
	EvAccessRevoked     = "document-access-revoked"
	EvDocumentDeleted   = "document-deleted"
	EvDocumentShared    = "document-shared"
	EvDocumentUnshared  = "document-unshared"
	EvDocumentShares    = "document-shares"
)

// Envelope is the wire frame: every message both directions is a named
// event with a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an outbound frame. Marshalling our own
// payload types can't fail, so errors are swallowed into an empty payload.
func NewEnvelope(event string, payload interface{}) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Event: event, Data: data}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	return json.Unmarshal(raw, v)
}

// Selection is a half-open [start, end) range of rune offsets.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

func (p *AuthenticatePayload) Validate() error {
	if p.Token == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

type CreateDocumentPayload struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"isPublic"`
}

func (p *CreateDocumentPayload) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Title) > 255 {
		return fmt.Errorf("title too long")
	}
	return nil
}

type JoinDocumentPayload struct {
	DocumentID string `json:"documentId"`
}

func (p *JoinDocumentPayload) Validate() error {
	return requireDocumentID(p.DocumentID)
}

type LeaveDocumentPayload struct {
	DocumentID string `json:"documentId"`
}

func (p *LeaveDocumentPayload) Validate() error {
	return requireDocumentID(p.DocumentID)
}

type TextChangePayload struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
}

func (p *TextChangePayload) Validate() error {
	return requireDocumentID(p.DocumentID)
}

type TitleChangePayload struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
}

func (p *TitleChangePayload) Validate() error {
	if err := requireDocumentID(p.DocumentID); err != nil {
		return err
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Title) > 255 {
		return fmt.Errorf("title too long")
	}
	return nil
}

type CursorPositionPayload struct {
	DocumentID string     `json:"documentId"`
	Position   int        `json:"position"`
	Selection  *Selection `json:"selection,omitempty"`
}

func (p *CursorPositionPayload) Validate() error {
	if err := requireDocumentID(p.DocumentID); err != nil {
		return err
	}
	if p.Position < 0 {
		return fmt.Errorf("position must not be negative")
	}
	if p.Selection != nil && (p.Selection.Start < 0 || p.Selection.End < p.Selection.Start) {
		return fmt.Errorf("invalid selection range")
	}
	return nil
}

type ToggleVisibilityPayload struct {
	DocumentID string `json:"documentId"`
	IsPublic   bool   `json:"isPublic"`
}

func (p *ToggleVisibilityPayload) Validate() error {
	return requireDocumentID(p.DocumentID)
}

type DeleteDocumentPayload struct {
	DocumentID string `json:"documentId"`
}

func (p *DeleteDocumentPayload) Validate() error {
	return requireDocumentID(p.DocumentID)
}

type ShareDocumentPayload struct {
	DocumentID string `json:"documentId"`
	Email      string `json:"email"`
	Level      string `json:"permissionType"`
}

func (p *ShareDocumentPayload) Validate() error {
	if err := requireDocumentID(p.DocumentID); err != nil {
		return err
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	if p.Level != document.GrantRead && p.Level != document.GrantWrite {
		return fmt.Errorf("permissionType must be read or write")
	}
	return nil
}

type UnshareDocumentPayload struct {
	DocumentID string `json:"documentId"`
	Email      string `json:"email"`
}

func (p *UnshareDocumentPayload) Validate() error {
	if err := requireDocumentID(p.DocumentID); err != nil {
		return err
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

type GetDocumentSharesPayload struct {
	DocumentID string `json:"documentId"`
}

func (p *GetDocumentSharesPayload) Validate() error {
	return requireDocumentID(p.DocumentID)
}

func requireDocumentID(id string) error {
	if id == "" {
		return fmt.Errorf("documentId is required")
	}
	return nil
}

// Outbound payloads.

type ErrorPayload struct {
	Error string `json:"error"`
}

type AuthenticatedPayload struct {
	User AuthenticatedUser `json:"user"`
}

type AuthenticatedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type DocumentContentPayload struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Role       string `json:"role"`
}

type DocumentCreatedPayload struct {
	Document *document.Document `json:"document"`
}

type RoomUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type UsersUpdatePayload struct {
	DocumentID string     `json:"documentId"`
	Users      []RoomUser `json:"users"`
}

type UserPresencePayload struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
}

type TextChangeBroadcast struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
	UserID     string `json:"userId"`
}

type TitleChangeBroadcast struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	UserID     string `json:"userId"`
}

type CursorBroadcast struct {
	DocumentID string     `json:"documentId"`
	UserID     string     `json:"userId"`
	Username   string     `json:"username"`
	Position   int        `json:"position"`
	Selection  *Selection `json:"selection,omitempty"`
}

type CursorRemovedPayload struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
}

type VisibilityUpdatedPayload struct {
	DocumentID string `json:"documentId"`
	IsPublic   bool   `json:"isPublic"`
}

type AccessRevokedPayload struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
}

type DocumentDeletedPayload struct {
	DocumentID string `json:"documentId"`
}

type DocumentsListPayload struct {
	OwnDocuments    []document.ListedDocument `json:"ownDocuments"`
	SharedDocuments []document.ListedDocument `json:"sharedDocuments"`
	PublicDocuments []document.ListedDocument `json:"publicDocuments"`
}

type SharePayload struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Level      string `json:"permissionType,omitempty"`
}

type DocumentSharesPayload struct {
	DocumentID string               `json:"documentId"`
	Shares     []document.GrantInfo `json:"shares"`
}
