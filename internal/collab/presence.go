package collab

import (
	"sync"
	"time"
)

// Cursor is ephemeral per-(document, user) state. Never persisted.
type Cursor struct {
	DocumentID string
	UserID     string
	Username   string
	Position   int
	Selection  *Selection
	UpdatedAt  time.Time
}

// Presence stores live cursors and garbage-collects the stale ones. A
// cursor not refreshed within the threshold is swept by ExpireStale.
type Presence struct {
	mu        sync.Mutex
	cursors   map[string]map[string]*Cursor
	threshold time.Duration
}

func NewPresence(staleThreshold time.Duration) *Presence {
	return &Presence{
		cursors:   make(map[string]map[string]*Cursor),
		threshold: staleThreshold,
	}
}

func (p *Presence) Update(docID, userID, username string, position int, selection *Selection, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byUser, ok := p.cursors[docID]
	if !ok {
		byUser = make(map[string]*Cursor)
		p.cursors[docID] = byUser
	}
	byUser[userID] = &Cursor{
		DocumentID: docID,
		UserID:     userID,
		Username:   username,
		Position:   position,
		Selection:  selection,
		UpdatedAt:  now,
	}
}

func (p *Presence) Get(docID, userID string) *Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.cursors[docID][userID]; ok {
		copied := *c
		return &copied
	}
	return nil
}

// Remove drops a user's cursor, reporting whether one existed.
func (p *Presence) Remove(docID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	byUser, ok := p.cursors[docID]
	if !ok {
		return false
	}
	if _, ok := byUser[userID]; !ok {
		return false
	}
	delete(byUser, userID)
	if len(byUser) == 0 {
		delete(p.cursors, docID)
	}
	return true
}

// PurgeDocument drops every cursor of a document, used on deletion.
func (p *Presence) PurgeDocument(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cursors, docID)
}

// ExpireStale removes cursors older than the threshold and returns them so
// the caller can notify rooms exactly once per removal.
func (p *Presence) ExpireStale(now time.Time) []Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []Cursor
	for docID, byUser := range p.cursors {
		for userID, c := range byUser {
			if now.Sub(c.UpdatedAt) > p.threshold {
				expired = append(expired, *c)
				delete(byUser, userID)
			}
		}
		if len(byUser) == 0 {
			delete(p.cursors, docID)
		}
	}
	return expired
}
