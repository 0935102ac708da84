package collab

import "sync"

// Rooms tracks which users are present in which document. Presence is keyed
// by user id, so two tabs of the same account collapse into one entry.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{members: make(map[string]map[string]struct{})}
}

// Join adds a member. Re-adding an existing member is a no-op.
func (r *Rooms) Join(docID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[docID]
	if !ok {
		set = make(map[string]struct{})
		r.members[docID] = set
	}
	set[userID] = struct{}{}
}

// Leave removes a member. When the set becomes empty the document entry is
// dropped entirely. Idempotent.
func (r *Rooms) Leave(docID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[docID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(r.members, docID)
	}
}

// Members returns the current member set, empty for unknown documents.
func (r *Rooms) Members(docID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[docID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (r *Rooms) Contains(docID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[docID][userID]
	return ok
}

// Purge drops the whole room, used on document deletion.
func (r *Rooms) Purge(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, docID)
}

// DocumentsOf lists every document the user is currently a member of,
// used for disconnect cleanup.
func (r *Rooms) DocumentsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var docs []string
	for docID, set := range r.members {
		if _, ok := set[userID]; ok {
			docs = append(docs, docID)
		}
	}
	return docs
}
