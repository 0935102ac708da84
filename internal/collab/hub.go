package collab

import (
	"collaborative-text-editor/auth"
	"collaborative-text-editor/internal/document"
	"collaborative-text-editor/internal/errors"
	"collaborative-text-editor/redis"
	"context"
	defError "errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Hub owns the websocket endpoint: it runs the authenticate handshake,
// dispatches validated events into the coordinator and reclaims state when
// a connection drops. Every event except authenticate is rejected until the
// handshake succeeded.
type Hub struct {
	coordinator *Coordinator
	registry    *Registry
	verifier    auth.Verifier
	tokens      *redis.TokenStore

	sweepInterval time.Duration
	stop          chan struct{}

	upgrader websocket.Upgrader
}

func NewHub(
	coordinator *Coordinator,
	registry *Registry,
	verifier auth.Verifier,
	tokens *redis.TokenStore,
	sweepInterval time.Duration,
) *Hub {
	return &Hub{
		coordinator:   coordinator,
		registry:      registry,
		verifier:      verifier,
		tokens:        tokens,
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers enforce origin; the REST layer enforces CORS.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the periodic stale-cursor sweep until Stop is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			h.coordinator.ExpireStaleCursors(now)
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stop)
}

// ServeWS upgrades the HTTP request and runs the connection's read loop.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn)
	go client.writePump()
	h.readLoop(client)
}

func (h *Hub) readLoop(client *Client) {
	defer func() {
		if sess := client.Session(); sess != nil {
			log.Printf("User disconnected: %s (%s)", sess.Username, sess.UserID)
			h.coordinator.Disconnect(sess, client)
		}
		client.close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := client.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		h.dispatch(client, env)
	}
}

func (h *Hub) dispatch(client *Client, env Envelope) {
	if env.Event == EvAuthenticate {
		h.handleAuthenticate(client, env)
		return
	}

	sess := client.Session()
	if sess == nil {
		client.Send(NewEnvelope(EvAuthError, ErrorPayload{Error: "Not authenticated"}))
		return
	}

	ctx := context.Background()

	switch env.Event {
	case EvGetDocuments:
		h.handleGetDocuments(ctx, client, sess)
	case EvCreateDocument:
		h.handleCreateDocument(ctx, client, sess, env)
	case EvJoinDocument:
		h.handleJoinDocument(ctx, client, sess, env, EvDocumentContent)
	case EvGetDocument:
		// Legacy join-and-fetch alias; same path, different reply event.
		h.handleJoinDocument(ctx, client, sess, env, EvDocumentData)
	case EvLeaveDocument:
		h.handleLeaveDocument(client, sess, env)
	case EvTextChange:
		h.handleTextChange(ctx, client, sess, env)
	case EvTitleChange:
		h.handleTitleChange(ctx, client, sess, env)
	case EvCursorPosition:
		h.handleCursorPosition(ctx, client, sess, env)
	case EvToggleVisibility:
		h.handleToggleVisibility(ctx, client, sess, env)
	case EvDeleteDocument:
		h.handleDeleteDocument(ctx, client, sess, env)
	case EvShareDocument:
		h.handleShareDocument(ctx, client, sess, env)
	case EvUnshareDocument:
		h.handleUnshareDocument(ctx, client, sess, env)
	case EvGetDocumentShares:
		h.handleGetDocumentShares(ctx, client, sess, env)
	default:
		client.Send(NewEnvelope(EvDocumentError, ErrorPayload{Error: "Unknown event: " + env.Event}))
	}
}

func (h *Hub) handleAuthenticate(client *Client, env Envelope) {
	var payload AuthenticatePayload
	if err := decodePayload(env.Data, &payload); err != nil {
		client.Send(NewEnvelope(EvAuthError, ErrorPayload{Error: "Invalid authenticate payload"}))
		return
	}
	if err := payload.Validate(); err != nil {
		client.Send(NewEnvelope(EvAuthError, ErrorPayload{Error: err.Error()}))
		return
	}

	claims, err := h.verifier.VerifyToken(payload.Token)
	if err != nil {
		client.Send(NewEnvelope(EvAuthError, ErrorPayload{Error: "Invalid token"}))
		return
	}

	live, err := h.tokens.Exists(context.Background(), payload.Token)
	if err != nil || !live {
		client.Send(NewEnvelope(EvAuthError, ErrorPayload{Error: "Token expired or not found"}))
		return
	}

	sess := &Session{UserID: claims.UserID, Username: claims.Username}
	client.bindSession(sess)
	h.registry.Register(sess.UserID, client)

	log.Printf("User authenticated via WebSocket: %s (%s)", sess.Username, sess.UserID)
	client.Send(NewEnvelope(EvAuthenticated, AuthenticatedPayload{
		User: AuthenticatedUser{ID: sess.UserID, Username: sess.Username},
	}))
}

func (h *Hub) handleGetDocuments(ctx context.Context, client *Client, sess *Session) {
	list, err := h.coordinator.Documents(ctx, sess.UserID)
	if err != nil {
		h.sendError(client, err)
		return
	}
	client.Send(NewEnvelope(EvDocumentsList, list))
}

func (h *Hub) handleCreateDocument(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload CreateDocumentPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	doc, err := h.coordinator.Create(ctx, sess, payload.Title, payload.Content, payload.IsPublic)
	if err != nil {
		h.sendError(client, err)
		return
	}

	log.Printf("Document created: %s by user %s", doc.ID, sess.UserID)
	client.Send(NewEnvelope(EvDocumentCreated, DocumentCreatedPayload{Document: doc}))

	if doc.IsPublic {
		h.coordinator.PushDocumentsToAll(ctx)
	} else {
		h.coordinator.PushDocumentsTo(ctx, sess.UserID)
	}
}

func (h *Hub) handleJoinDocument(ctx context.Context, client *Client, sess *Session, env Envelope, replyEvent string) {
	var payload JoinDocumentPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	content, err := h.coordinator.Join(ctx, sess, payload.DocumentID)
	if err != nil {
		h.sendError(client, err)
		return
	}
	client.Send(NewEnvelope(replyEvent, content))
}

func (h *Hub) handleLeaveDocument(client *Client, sess *Session, env Envelope) {
	var payload LeaveDocumentPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}
	h.coordinator.Leave(sess, payload.DocumentID)
}

func (h *Hub) handleTextChange(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload TextChangePayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	err := h.coordinator.Mutate(ctx, sess, payload.DocumentID, document.UpdateFields{
		Content: &payload.Content,
	})
	if err != nil {
		h.sendError(client, err)
	}
}

func (h *Hub) handleTitleChange(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload TitleChangePayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	err := h.coordinator.Mutate(ctx, sess, payload.DocumentID, document.UpdateFields{
		Title: &payload.Title,
	})
	if err != nil {
		h.sendError(client, err)
	}
}

func (h *Hub) handleCursorPosition(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload CursorPositionPayload
	if err := decodePayload(env.Data, &payload); err != nil {
		return // cursor pings are best-effort, drop malformed ones silently
	}
	if err := payload.Validate(); err != nil {
		return
	}
	h.coordinator.UpdateCursor(ctx, sess, payload.DocumentID, payload.Position, payload.Selection)
}

func (h *Hub) handleToggleVisibility(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload ToggleVisibilityPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	if err := h.coordinator.ToggleVisibility(ctx, sess, payload.DocumentID, payload.IsPublic); err != nil {
		h.sendError(client, err)
		return
	}
	log.Printf("Document %s visibility changed to public=%v by user %s", payload.DocumentID, payload.IsPublic, sess.UserID)
}

func (h *Hub) handleDeleteDocument(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload DeleteDocumentPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	if err := h.coordinator.Delete(ctx, sess, payload.DocumentID); err != nil {
		h.sendError(client, err)
		return
	}
	log.Printf("Document deleted: %s by user %s", payload.DocumentID, sess.UserID)
}

func (h *Hub) handleShareDocument(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload ShareDocumentPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	result, err := h.coordinator.Share(ctx, sess, payload.DocumentID, payload.Email, payload.Level)
	if err != nil {
		h.sendError(client, err)
		return
	}
	client.Send(NewEnvelope(EvDocumentShared, result))
}

func (h *Hub) handleUnshareDocument(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload UnshareDocumentPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	result, err := h.coordinator.Unshare(ctx, sess, payload.DocumentID, payload.Email)
	if err != nil {
		h.sendError(client, err)
		return
	}
	client.Send(NewEnvelope(EvDocumentUnshared, result))
}

func (h *Hub) handleGetDocumentShares(ctx context.Context, client *Client, sess *Session, env Envelope) {
	var payload GetDocumentSharesPayload
	if err := h.decode(client, env, &payload); err != nil {
		return
	}

	result, err := h.coordinator.Shares(ctx, sess, payload.DocumentID)
	if err != nil {
		h.sendError(client, err)
		return
	}
	client.Send(NewEnvelope(EvDocumentShares, result))
}

type validatedPayload interface {
	Validate() error
}

// decode unmarshals and validates an inbound payload, reporting problems
// back to the sender.
func (h *Hub) decode(client *Client, env Envelope, payload validatedPayload) error {
	if err := decodePayload(env.Data, payload); err != nil {
		client.Send(NewEnvelope(EvDocumentError, ErrorPayload{Error: "Invalid payload for " + env.Event}))
		return err
	}
	if err := payload.Validate(); err != nil {
		client.Send(NewEnvelope(EvDocumentError, ErrorPayload{Error: err.Error()}))
		return err
	}
	return nil
}

// sendError maps the shared error taxonomy onto wire events: authentication
// problems become auth-error, everything else document-error. Errors are
// reported to the originating connection only, never broadcast.
func (h *Hub) sendError(client *Client, err error) {
	var apiErr *errors.APIError
	if !defError.As(err, &apiErr) {
		apiErr = errors.Internal(err)
	}
	event := EvDocumentError
	if apiErr.Status == http.StatusUnauthorized {
		event = EvAuthError
	}
	client.Send(NewEnvelope(event, ErrorPayload{Error: apiErr.Message}))
}
