package session

import "sync"

// Registry owns the set of live sessions plus a userID -> sessionIDs index
// for disconnect and active-game queries. Sessions enter at match time and
// leave when a terminal transition releases them; no other component keeps a
// long-lived reference to mutable session state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (r *Registry) Register(s *Session) {
	if s == nil {
		return
	}
	snap := s.Snapshot()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[snap.ID] = s
	r.indexLocked(snap.White.ID, snap.ID)
	r.indexLocked(snap.Black.ID, snap.ID)
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ActiveSessionsFor returns the sessions userID currently participates in.
func (r *Registry) ActiveSessionsFor(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(ids))
	for id := range ids {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Release drops a session and its index entries. Idempotent.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	snap := s.Snapshot()
	delete(r.sessions, id)
	r.unindexLocked(snap.White.ID, id)
	r.unindexLocked(snap.Black.ID, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) indexLocked(userID, sessionID string) {
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[sessionID] = struct{}{}
}

func (r *Registry) unindexLocked(userID, sessionID string) {
	if set, ok := r.byUser[userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.byUser, userID)
		}
	}
}
