package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/inovalupa/govtech-analyzer/internal/models"
)

// Registry keeps the state of every open session. Update is the only writer.
type Registry struct {
	mu     sync.Mutex
	states map[string]State
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]State)}
}

// Open registers a new session for u and returns its id.
func (r *Registry) Open(u models.User) (string, State) {
	id := uuid.NewString()
	st := LoggedIn(u)

	r.mu.Lock()
	r.states[id] = st
	r.mu.Unlock()
	return id, st
}

func (r *Registry) Get(id string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	return st, ok
}

// Update applies fn atomically. When fn fails the stored state is kept.
func (r *Registry) Update(id string, fn func(State) (State, error)) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.states[id]
	if !ok {
		return State{}, ErrNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	r.states[id] = next
	return next, nil
}

// Close forgets the session and returns the logged-out state.
func (r *Registry) Close(id string) State {
	r.mu.Lock()
	delete(r.states, id)
	r.mu.Unlock()
	return LoggedOut()
}

// CloseUser ends every session belonging to userID.
func (r *Registry) CloseUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, st := range r.states {
		if st.User.ID == userID {
			delete(r.states, id)
			n++
		}
	}
	return n
}
