package lifecycle

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory with the same compare-and-set
// semantics as the Postgres store. Useful for tests; not intended for
// production use.
type MemoryStore struct {
	mu          sync.Mutex
	requests    map[string]Request
	statusHist  map[string][]StatusHistoryEntry
	assignHist  map[string][]AssignmentHistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:   make(map[string]Request),
		statusHist: make(map[string][]StatusHistoryEntry),
		assignHist: make(map[string][]AssignmentHistoryEntry),
	}
}

func (s *MemoryStore) CreateRequest(ctx context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, r Request, expect Status, sh *StatusHistoryEntry, ah *AssignmentHistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.requests[r.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.Status != expect {
		return false, nil
	}

	s.requests[r.ID] = r
	if sh != nil {
		s.statusHist[r.ID] = append(s.statusHist[r.ID], *sh)
	}
	if ah != nil {
		s.assignHist[r.ID] = append(s.assignHist[r.ID], *ah)
	}
	return true, nil
}

func (s *MemoryStore) ClaimForTechnician(ctx context.Context, requestID, technicianID string, now time.Time, sh StatusHistoryEntry, ah AssignmentHistoryEntry) (Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.requests[requestID]
	if !ok {
		return Request{}, false, ErrNotFound
	}
	if cur.AssignedToID != "" || cur.Status != StatusSubmitted {
		return cur, false, nil
	}

	cur.AssignedToID = technicianID
	cur.Status = StatusAssigned
	cur.UpdatedAt = now
	s.requests[requestID] = cur
	s.statusHist[requestID] = append(s.statusHist[requestID], sh)
	s.assignHist[requestID] = append(s.assignHist[requestID], ah)
	return cur, true, nil
}

func (s *MemoryStore) ResolveConfirmation(ctx context.Context, requestID string, res Resolution, sh StatusHistoryEntry) (Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.requests[requestID]
	if !ok {
		return Request{}, false, ErrNotFound
	}
	if cur.Status != StatusCompleted || cur.ConfirmationStatus != ConfirmationPending {
		return cur, false, nil
	}

	applyResolution(&cur, res)
	s.requests[requestID] = cur
	s.statusHist[requestID] = append(s.statusHist[requestID], sh)
	return cur, true, nil
}

func (s *MemoryStore) ListOverdueConfirmations(ctx context.Context, completedBefore time.Time, limit int) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Status != StatusCompleted || r.ConfirmationStatus != ConfirmationPending {
			continue
		}
		if r.CompletedDate == nil || !r.CompletedDate.Before(completedBefore) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedDate.Before(*out[j].CompletedDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) StatusHistory(ctx context.Context, requestID string) ([]StatusHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.statusHist[requestID]
	out := make([]StatusHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemoryStore) AssignmentHistory(ctx context.Context, requestID string) ([]AssignmentHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.assignHist[requestID]
	out := make([]AssignmentHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// MemoryDirectory is an in-memory user directory for tests.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *MemoryDirectory) FindUser(ctx context.Context, id string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
