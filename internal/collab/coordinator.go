package collab

import (
	"collaborative-text-editor/internal/document"
	"collaborative-text-editor/internal/errors"
	"collaborative-text-editor/internal/user"
	"collaborative-text-editor/internal/worker"
	"context"
	"log"
	"sync"
	"time"
)

// UserDirectory is the slice of the user service the coordinator needs to
// resolve share targets.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

// workingCopy is the in-memory latest-known state of one document. It runs
// ahead of the persisted record and absorbs edit bursts; the store converges
// to it through the worker pool.
type workingCopy struct {
	mu       sync.Mutex
	title    string
	content  string
	isPublic bool
}

// Coordinator serializes document mutations per document id, enforces
// permissions through the gate, keeps the working copies, persists
// asynchronously and fans results out to room members.
type Coordinator struct {
	repo     document.DocumentRepository
	users    UserDirectory
	gate     *Gate
	registry *Registry
	rooms    *Rooms
	presence *Presence
	pool     *worker.Pool

	mu     sync.Mutex
	copies map[string]*workingCopy
}

func NewCoordinator(
	repo document.DocumentRepository,
	users UserDirectory,
	gate *Gate,
	registry *Registry,
	rooms *Rooms,
	presence *Presence,
	pool *worker.Pool,
) *Coordinator {
	return &Coordinator{
		repo:     repo,
		users:    users,
		gate:     gate,
		registry: registry,
		rooms:    rooms,
		presence: presence,
		pool:     pool,
		copies:   make(map[string]*workingCopy),
	}
}

// copyFor returns the working copy for a document, seeding it from the
// persisted record on first touch.
func (co *Coordinator) copyFor(docID string, seed *document.Document) *workingCopy {
	co.mu.Lock()
	defer co.mu.Unlock()
	wc, ok := co.copies[docID]
	if !ok {
		wc = &workingCopy{}
		if seed != nil {
			wc.title = seed.Title
			wc.content = seed.Content
			wc.isPublic = seed.IsPublic
		}
		co.copies[docID] = wc
	}
	return wc
}

func (co *Coordinator) dropCopy(docID string) {
	co.mu.Lock()
	defer co.mu.Unlock()
	delete(co.copies, docID)
}

// Snapshot returns the current working-copy content and title, falling back
// to the given record when the document has never been touched in memory.
func (co *Coordinator) Snapshot(docID string) (title, content string, ok bool) {
	co.mu.Lock()
	wc, found := co.copies[docID]
	co.mu.Unlock()
	if !found {
		return "", "", false
	}
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.title, wc.content, true
}

// Create inserts a new document and seeds its working copy. The creator
// becomes the owner; no grant row is needed for ownership.
func (co *Coordinator) Create(ctx context.Context, sess *Session, title, content string, isPublic bool) (*document.Document, error) {
	doc := &document.Document{
		Title:    title,
		Content:  content,
		OwnerID:  sess.UserID,
		IsPublic: isPublic,
	}
	if err := co.repo.Insert(ctx, doc); err != nil {
		return nil, errors.Unavailable("Can't create document", err)
	}
	co.copyFor(doc.ID, doc)

	co.auditAsync(doc.ID, sess.UserID, "create", "")
	return doc, nil
}

// Join adds the user to the document room and hands back a consistent view:
// the current working copy, not the possibly stale persisted record.
func (co *Coordinator) Join(ctx context.Context, sess *Session, docID string) (*DocumentContentPayload, error) {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil {
		return nil, errors.Unavailable("Can't check document access", err)
	}
	if doc == nil {
		return nil, errors.NotFound("Document not found", nil)
	}
	if role == RoleNone {
		return nil, errors.Forbidden("You don't have access to this document", nil)
	}

	co.rooms.Join(docID, sess.UserID)

	wc := co.copyFor(docID, doc)
	wc.mu.Lock()
	payload := &DocumentContentPayload{
		DocumentID: docID,
		Title:      wc.title,
		Content:    wc.content,
		Role:       string(role),
	}
	wc.mu.Unlock()

	co.broadcastRoom(docID, sess.UserID, NewEnvelope(EvUserJoined, UserPresencePayload{
		DocumentID: docID,
		UserID:     sess.UserID,
		Username:   sess.Username,
	}))
	co.BroadcastRoster(docID)

	return payload, nil
}

// Leave removes the user from the room and tells the peers. Idempotent:
// leaving a room twice produces no duplicate notifications.
func (co *Coordinator) Leave(sess *Session, docID string) {
	if !co.rooms.Contains(docID, sess.UserID) {
		return
	}
	co.rooms.Leave(docID, sess.UserID)
	co.presence.Remove(docID, sess.UserID)

	co.broadcastRoom(docID, sess.UserID, NewEnvelope(EvUserLeft, UserPresencePayload{
		DocumentID: docID,
		UserID:     sess.UserID,
		Username:   sess.Username,
	}))
	co.BroadcastRoster(docID)
}

// Mutate applies a text or title change: permission check, synchronous
// working-copy update, fan-out in accepted order, asynchronous persistence.
// The working copy is never rolled back on a persistence failure; the
// originator alone gets an error event and may re-issue.
func (co *Coordinator) Mutate(ctx context.Context, sess *Session, docID string, fields document.UpdateFields) error {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil {
		return errors.Unavailable("Can't check document access", err)
	}
	if doc == nil {
		return errors.NotFound("Document not found", nil)
	}
	if !role.CanEdit() {
		return errors.Forbidden("You don't have permission to edit this document", nil)
	}

	wc := co.copyFor(docID, doc)

	// Apply and fan out under the per-document lock so every member observes
	// mutations in the order the coordinator accepted them.
	wc.mu.Lock()
	if fields.Content != nil {
		wc.content = *fields.Content
		co.broadcastRoom(docID, sess.UserID, NewEnvelope(EvTextChange, TextChangeBroadcast{
			DocumentID: docID,
			Content:    *fields.Content,
			UserID:     sess.UserID,
		}))
	}
	if fields.Title != nil {
		wc.title = *fields.Title
		co.broadcastRoom(docID, sess.UserID, NewEnvelope(EvTitleChange, TitleChangeBroadcast{
			DocumentID: docID,
			Title:      *fields.Title,
			UserID:     sess.UserID,
		}))
	}
	wc.mu.Unlock()

	co.persistAsync(docID, sess, fields)
	co.auditAsync(docID, sess.UserID, mutationKind(fields), "")
	return nil
}

// persistAsync writes the document through to the store on the worker pool.
// The task re-reads the live working copy at execution time, so however the
// queue interleaves, the store converges to the last accepted values.
func (co *Coordinator) persistAsync(docID string, sess *Session, fields document.UpdateFields) {
	originator := sess.UserID
	co.pool.Submit(func(ctx context.Context) error {
		wc := co.copyFor(docID, nil)
		wc.mu.Lock()
		current := document.UpdateFields{}
		if fields.Title != nil {
			title := wc.title
			current.Title = &title
		}
		if fields.Content != nil {
			content := wc.content
			current.Content = &content
		}
		if fields.IsPublic != nil {
			isPublic := wc.isPublic
			current.IsPublic = &isPublic
		}
		wc.mu.Unlock()

		if err := co.repo.Update(ctx, docID, current); err != nil {
			co.sendTo(originator, NewEnvelope(EvDocumentError, ErrorPayload{
				Error: "Can't save document changes",
			}))
			return err
		}
		return nil
	})
}

// ToggleVisibility flips the public flag. On a public→private transition
// every room member whose post-change role would be none is evicted, with an
// access-revoked notice, before the general visibility broadcast — so a
// soon-to-be-unauthorized viewer never keeps receiving content.
func (co *Coordinator) ToggleVisibility(ctx context.Context, sess *Session, docID string, isPublic bool) error {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil {
		return errors.Unavailable("Can't check document access", err)
	}
	if doc == nil {
		return errors.NotFound("Document not found", nil)
	}
	if role != RoleOwner {
		return errors.Forbidden("Only the owner can change document visibility", nil)
	}

	if !isPublic {
		if err := co.evictUnauthorized(ctx, docID, doc.OwnerID); err != nil {
			return err
		}
	}

	wc := co.copyFor(docID, doc)
	wc.mu.Lock()
	wc.isPublic = isPublic
	wc.mu.Unlock()

	// Visibility is committed synchronously: grants on top of a stale public
	// flag would reopen the window the eviction just closed.
	if err := co.repo.Update(ctx, docID, document.UpdateFields{IsPublic: &isPublic}); err != nil {
		return errors.Unavailable("Can't save document visibility", err)
	}

	update := NewEnvelope(EvVisibilityUpdated, VisibilityUpdatedPayload{
		DocumentID: docID,
		IsPublic:   isPublic,
	})
	co.sendTo(sess.UserID, update)
	co.broadcastRoom(docID, sess.UserID, update)
	co.BroadcastRoster(docID)

	co.auditAsync(docID, sess.UserID, "visibility", "")
	co.PushDocumentsToAll(ctx)
	return nil
}

// evictUnauthorized force-removes every room member who holds no explicit
// grant and is not the owner. Runs before the visibility flag flips.
func (co *Coordinator) evictUnauthorized(ctx context.Context, docID, ownerID string) error {
	for _, memberID := range co.rooms.Members(docID) {
		if memberID == ownerID {
			continue
		}
		grant, err := co.repo.GetGrant(ctx, docID, memberID)
		if err != nil {
			return errors.Unavailable("Can't check member access", err)
		}
		if grant != nil {
			continue
		}

		co.rooms.Leave(docID, memberID)
		co.presence.Remove(docID, memberID)

		co.sendTo(memberID, NewEnvelope(EvAccessRevoked, AccessRevokedPayload{
			DocumentID: docID,
			Message:    "This document was made private and you no longer have access",
		}))
		co.broadcastRoom(docID, memberID, NewEnvelope(EvUserLeft, UserPresencePayload{
			DocumentID: docID,
			UserID:     memberID,
			Username:   co.registry.Username(memberID),
		}))
	}
	return nil
}

// Delete removes the document, its grants and its audit rows transactionally,
// then purges all in-memory state and notifies members and list watchers.
func (co *Coordinator) Delete(ctx context.Context, sess *Session, docID string) error {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil {
		return errors.Unavailable("Can't check document access", err)
	}
	if doc == nil {
		return errors.NotFound("Document not found", nil)
	}
	if role != RoleOwner {
		return errors.Forbidden("Only the owner can delete this document", nil)
	}

	wasPublic := doc.IsPublic

	deleted, err := co.repo.DeleteDocumentCascade(ctx, docID)
	if err != nil {
		return errors.Unavailable("Can't delete document", err)
	}
	if !deleted {
		return errors.NotFound("Document not found", nil)
	}

	members := co.rooms.Members(docID)
	co.rooms.Purge(docID)
	co.presence.PurgeDocument(docID)
	co.dropCopy(docID)

	gone := NewEnvelope(EvDocumentDeleted, DocumentDeletedPayload{DocumentID: docID})
	for _, memberID := range members {
		if memberID == sess.UserID {
			continue
		}
		co.sendTo(memberID, gone)
	}
	// The requester is told exactly once, member of the room or not.
	co.sendTo(sess.UserID, gone)

	if wasPublic {
		co.PushDocumentsToAll(ctx)
	} else {
		co.PushDocumentsTo(ctx, sess.UserID)
	}
	return nil
}

// Share upserts a grant for the target user and tells their live session
// that the accessible-document list changed.
func (co *Coordinator) Share(ctx context.Context, sess *Session, docID, email, level string) (*SharePayload, error) {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil {
		return nil, errors.Unavailable("Can't check document access", err)
	}
	if doc == nil {
		return nil, errors.NotFound("Document not found", nil)
	}
	if role != RoleOwner {
		return nil, errors.Forbidden("Only the owner can share this document", nil)
	}

	target, err := co.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, errors.NotFound("No user found with this email", err)
	}
	if target.ID == sess.UserID {
		return nil, errors.UnprocessableEntity("Can't share a document with yourself", nil)
	}

	grant := &document.DocumentGrant{
		DocumentID:  docID,
		UserID:      target.ID,
		Level:       level,
		GrantedByID: sess.UserID,
	}
	if err := co.repo.UpsertGrant(ctx, grant); err != nil {
		return nil, errors.Unavailable("Can't share document", err)
	}

	co.auditAsync(docID, sess.UserID, "share", target.ID)
	co.PushDocumentsTo(ctx, target.ID)

	return &SharePayload{
		DocumentID: docID,
		UserID:     target.ID,
		Username:   target.Username,
		Email:      email,
		Level:      level,
	}, nil
}

// Unshare removes a grant. The target's list is refreshed; the gate's
// per-operation re-resolution cuts off any further privileged activity.
func (co *Coordinator) Unshare(ctx context.Context, sess *Session, docID, email string) (*SharePayload, error) {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil {
		return nil, errors.Unavailable("Can't check document access", err)
	}
	if doc == nil {
		return nil, errors.NotFound("Document not found", nil)
	}
	if role != RoleOwner {
		return nil, errors.Forbidden("Only the owner can manage shares", nil)
	}

	target, err := co.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, errors.NotFound("No user found with this email", err)
	}

	removed, err := co.repo.DeleteGrant(ctx, docID, target.ID)
	if err != nil {
		return nil, errors.Unavailable("Can't remove share", err)
	}
	if !removed {
		return nil, errors.NotFound("Share not found", nil)
	}

	co.auditAsync(docID, sess.UserID, "unshare", target.ID)
	co.PushDocumentsTo(ctx, target.ID)

	return &SharePayload{
		DocumentID: docID,
		UserID:     target.ID,
		Username:   target.Username,
		Email:      email,
	}, nil
}

// Shares lists the current grants of a document for its owner.
func (co *Coordinator) Shares(ctx context.Context, sess *Session, docID string) (*DocumentSharesPayload, error) {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil {
		return nil, errors.Unavailable("Can't check document access", err)
	}
	if doc == nil {
		return nil, errors.NotFound("Document not found", nil)
	}
	if role != RoleOwner {
		return nil, errors.Forbidden("Only the owner can list shares", nil)
	}

	grants, err := co.repo.ListGrants(ctx, docID)
	if err != nil {
		return nil, errors.Unavailable("Can't list shares", err)
	}
	return &DocumentSharesPayload{DocumentID: docID, Shares: grants}, nil
}

// UpdateCursor re-validates access and fans the cursor out to every other
// room member. A user whose access is gone gets a silent drop, not an
// error: they simply stop being broadcast.
func (co *Coordinator) UpdateCursor(ctx context.Context, sess *Session, docID string, position int, selection *Selection) {
	role, doc, err := co.gate.Resolve(ctx, docID, sess.UserID)
	if err != nil || doc == nil || role == RoleNone {
		return
	}

	co.presence.Update(docID, sess.UserID, sess.Username, position, selection, time.Now())

	co.broadcastRoom(docID, sess.UserID, NewEnvelope(EvCursorPosition, CursorBroadcast{
		DocumentID: docID,
		UserID:     sess.UserID,
		Username:   sess.Username,
		Position:   position,
		Selection:  selection,
	}))
}

// ExpireStaleCursors sweeps the presence map and notifies each affected
// room once per removed cursor.
func (co *Coordinator) ExpireStaleCursors(now time.Time) {
	for _, cursor := range co.presence.ExpireStale(now) {
		co.broadcastRoom(cursor.DocumentID, cursor.UserID, NewEnvelope(EvCursorRemoved, CursorRemovedPayload{
			DocumentID: cursor.DocumentID,
			UserID:     cursor.UserID,
		}))
	}
}

// Disconnect reclaims all room and presence state of a dropped connection.
// Best-effort and idempotent; never fails observably.
func (co *Coordinator) Disconnect(sess *Session, c *Client) {
	co.registry.Unregister(sess.UserID, c)
	for _, docID := range co.rooms.DocumentsOf(sess.UserID) {
		co.Leave(sess, docID)
	}
}

// Documents assembles the full listing pushed to a client: owned, shared
// with them, and public documents they don't already see through a share.
func (co *Coordinator) Documents(ctx context.Context, userID string) (*DocumentsListPayload, error) {
	own, err := co.repo.ListOwned(ctx, userID)
	if err != nil {
		return nil, errors.Unavailable("Can't list documents", err)
	}
	shared, err := co.repo.ListSharedWith(ctx, userID)
	if err != nil {
		return nil, errors.Unavailable("Can't list documents", err)
	}
	excludeIDs := make([]string, 0, len(shared))
	for _, d := range shared {
		excludeIDs = append(excludeIDs, d.ID)
	}
	public, err := co.repo.ListPublicExcluding(ctx, userID, excludeIDs)
	if err != nil {
		return nil, errors.Unavailable("Can't list documents", err)
	}
	return &DocumentsListPayload{
		OwnDocuments:    own,
		SharedDocuments: shared,
		PublicDocuments: public,
	}, nil
}

// PushDocumentsTo refreshes one connected user's document list.
func (co *Coordinator) PushDocumentsTo(ctx context.Context, userID string) {
	c := co.registry.Lookup(userID)
	if c == nil {
		return
	}
	list, err := co.Documents(ctx, userID)
	if err != nil {
		log.Printf("can't push document list to user %s: %v", userID, err)
		return
	}
	c.Send(NewEnvelope(EvDocumentsList, list))
}

// PushDocumentsToAll refreshes the list of every connected user.
func (co *Coordinator) PushDocumentsToAll(ctx context.Context) {
	for userID := range co.registry.All() {
		co.PushDocumentsTo(ctx, userID)
	}
}

// BroadcastRoster sends the full member roster to everyone in the room,
// resolving display names through the session registry.
func (co *Coordinator) BroadcastRoster(docID string) {
	members := co.rooms.Members(docID)
	users := make([]RoomUser, 0, len(members))
	for _, memberID := range members {
		users = append(users, RoomUser{
			UserID:   memberID,
			Username: co.registry.Username(memberID),
		})
	}
	env := NewEnvelope(EvUsersUpdate, UsersUpdatePayload{DocumentID: docID, Users: users})
	for _, memberID := range members {
		co.sendTo(memberID, env)
	}
}

func (co *Coordinator) sendTo(userID string, env Envelope) {
	if c := co.registry.Lookup(userID); c != nil {
		c.Send(env)
	}
}

// broadcastRoom fans an event out to every room member except the sender.
func (co *Coordinator) broadcastRoom(docID, exceptUserID string, env Envelope) {
	for _, memberID := range co.rooms.Members(docID) {
		if memberID == exceptUserID {
			continue
		}
		co.sendTo(memberID, env)
	}
}

// auditAsync appends an operation row on the worker pool. Write failures
// are logged by the pool and otherwise ignored; the audit trail is
// observability, not a correctness dependency.
func (co *Coordinator) auditAsync(docID, userID, kind, payload string) {
	co.pool.Submit(func(ctx context.Context) error {
		return co.repo.RecordOperation(ctx, &document.DocumentOperation{
			DocumentID: docID,
			UserID:     userID,
			Kind:       kind,
			Payload:    payload,
		})
	})
}

func mutationKind(fields document.UpdateFields) string {
	kind := ""
	if fields.Content != nil {
		kind = "content"
	}
	if fields.Title != nil {
		if kind != "" {
			kind += "+title"
		} else {
			kind = "title"
		}
	}
	if kind == "" {
		kind = "noop"
	}
	return kind
}
