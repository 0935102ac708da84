package collab

import (
	"collaborative-text-editor/auth"
	"collaborative-text-editor/internal/document"
	"collaborative-text-editor/redis"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, env *testEnv) (*Hub, *auth.JWT, *redis.TokenStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	tokens := redis.NewTokenStoreWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	jwt := auth.NewJWT("test-secret", time.Hour)
	hub := NewHub(env.co, env.registry, jwt, tokens, time.Minute)
	return hub, jwt, tokens
}

func issueToken(t *testing.T, jwt *auth.JWT, tokens *redis.TokenStore, userID, username string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, username)
	require.NoError(t, err)
	require.NoError(t, tokens.Save(context.Background(), token, userID, time.Hour))
	return token
}

func envelope(t *testing.T, event string, payload interface{}) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Event: event, Data: data}
}

func TestDispatchRejectsUnauthenticated(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, _, _ := newTestHub(t, env)

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)

	hub.dispatch(client, Envelope{Event: EvGetDocuments})

	frames := rec.byEvent(EvAuthError)
	require.Len(t, frames, 1)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "Not authenticated", payload.Error)
}

func TestAuthenticateHandshake(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, jwt, tokens := newTestHub(t, env)
	token := issueToken(t, jwt, tokens, "u1", "Alice")

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)

	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: token}))

	frames := rec.byEvent(EvAuthenticated)
	require.Len(t, frames, 1)
	var payload AuthenticatedPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "u1", payload.User.ID)
	assert.Equal(t, "Alice", payload.User.Username)

	require.NotNil(t, client.Session())
	assert.Equal(t, "u1", client.Session().UserID)
	assert.Same(t, client, env.registry.Lookup("u1"))
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, _, _ := newTestHub(t, env)

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)

	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: "not-a-jwt"}))

	require.Len(t, rec.byEvent(EvAuthError), 1)
	assert.Nil(t, client.Session())
	assert.Nil(t, env.registry.Lookup("u1"))
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, jwt, _ := newTestHub(t, env)

	// Signed but never saved: revoked or expired out of the store.
	token, err := jwt.GenerateToken("u1", "Alice")
	require.NoError(t, err)

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)

	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: token}))

	frames := rec.byEvent(EvAuthError)
	require.Len(t, frames, 1)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "Token expired or not found", payload.Error)
	assert.Nil(t, client.Session())
}

func TestDispatchUnknownEvent(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, jwt, tokens := newTestHub(t, env)
	token := issueToken(t, jwt, tokens, "u1", "Alice")

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)
	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: token}))

	hub.dispatch(client, Envelope{Event: "no-such-event"})

	require.Len(t, rec.byEvent(EvDocumentError), 1)
}

func TestDispatchReportsInvalidPayload(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, jwt, tokens := newTestHub(t, env)
	token := issueToken(t, jwt, tokens, "u1", "Alice")

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)
	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: token}))

	// Missing documentId fails validation before any coordinator call.
	hub.dispatch(client, envelope(t, EvJoinDocument, JoinDocumentPayload{}))

	require.Len(t, rec.byEvent(EvDocumentError), 1)
	env.repo.AssertNotCalled(t, "GetDocument", mock.Anything, mock.Anything)
}

func TestDispatchJoinFlow(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, jwt, tokens := newTestHub(t, env)
	token := issueToken(t, jwt, tokens, "u1", "Alice")

	doc := &document.Document{ID: "d1", Title: "T", Content: "body", OwnerID: "u1", IsPublic: false}
	env.repo.On("GetDocument", mock.Anything, "d1").Return(doc, nil)

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)
	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: token}))

	hub.dispatch(client, envelope(t, EvJoinDocument, JoinDocumentPayload{DocumentID: "d1"}))

	frames := rec.byEvent(EvDocumentContent)
	require.Len(t, frames, 1)
	var payload DocumentContentPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "body", payload.Content)
	assert.Equal(t, "owner", payload.Role)
	assert.Contains(t, env.rooms.Members("d1"), "u1")
}

func TestDispatchGetDocumentAlias(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, jwt, tokens := newTestHub(t, env)
	token := issueToken(t, jwt, tokens, "u1", "Alice")

	doc := &document.Document{ID: "d1", Title: "T", Content: "body", OwnerID: "u1", IsPublic: false}
	env.repo.On("GetDocument", mock.Anything, "d1").Return(doc, nil)

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)
	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: token}))

	hub.dispatch(client, envelope(t, EvGetDocument, JoinDocumentPayload{DocumentID: "d1"}))

	// Legacy fetch joins the room and replies on its own event name.
	frames := rec.byEvent(EvDocumentData)
	require.Len(t, frames, 1)
	var payload DocumentContentPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "body", payload.Content)
	assert.Empty(t, rec.byEvent(EvDocumentContent))
	assert.Contains(t, env.rooms.Members("d1"), "u1")
}

func TestDispatchMapsForbiddenToDocumentError(t *testing.T) {
	env := newTestEnv()
	defer env.pool.Shutdown()
	hub, jwt, tokens := newTestHub(t, env)
	token := issueToken(t, jwt, tokens, "u2", "Bob")

	doc := &document.Document{ID: "d1", OwnerID: "u1", IsPublic: false}
	env.repo.On("GetDocument", mock.Anything, "d1").Return(doc, nil)
	env.repo.On("GetGrant", mock.Anything, "d1", "u2").Return(nil, nil)

	rec := &recorder{}
	client := NewClient(nil)
	client.SetSendHook(rec.hook)
	hub.dispatch(client, envelope(t, EvAuthenticate, AuthenticatePayload{Token: token}))

	hub.dispatch(client, envelope(t, EvJoinDocument, JoinDocumentPayload{DocumentID: "d1"}))

	frames := rec.byEvent(EvDocumentError)
	require.Len(t, frames, 1)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "You don't have access to this document", payload.Error)
	assert.NotContains(t, env.rooms.Members("d1"), "u2")
}
