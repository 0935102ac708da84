package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	c := NewClient(nil)

	r.Register("u1", c)

	assert.Equal(t, c, r.Lookup("u1"))
	assert.Nil(t, r.Lookup("u2"))
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	first := NewClient(nil)
	second := NewClient(nil)

	r.Register("u1", first)
	r.Register("u1", second)

	assert.Equal(t, second, r.Lookup("u1"))
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := NewClient(nil)

	r.Register("u1", c)
	r.Unregister("u1", c)
	r.Unregister("u1", c)
	r.Unregister("missing", c)

	assert.Nil(t, r.Lookup("u1"))
}

func TestRegistryStaleUnregisterKeepsSupersedingConnection(t *testing.T) {
	r := NewRegistry()
	old := NewClient(nil)
	replacement := NewClient(nil)

	r.Register("u1", old)
	r.Register("u1", replacement)

	// The superseded connection's teardown must not evict the new one.
	r.Unregister("u1", old)

	assert.Equal(t, replacement, r.Lookup("u1"))
}

func TestRegistryUsername(t *testing.T) {
	r := NewRegistry()
	c := NewClient(nil)
	c.bindSession(&Session{UserID: "u1", Username: "alice"})
	r.Register("u1", c)

	assert.Equal(t, "alice", r.Username("u1"))
	// Falls back to the id for offline users.
	assert.Equal(t, "u2", r.Username("u2"))
}

func TestRegistryAllSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", NewClient(nil))
	r.Register("u2", NewClient(nil))

	all := r.All()
	assert.Len(t, all, 2)

	// Mutating the snapshot must not affect the registry.
	delete(all, "u1")
	assert.NotNil(t, r.Lookup("u1"))
}
