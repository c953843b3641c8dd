package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTicketTTL is how long a WebSocket ticket stays redeemable.
const DefaultTicketTTL = 60 * time.Second

type ticket struct {
	subject string
	expires time.Time
}

// TicketStore hands out single-use WebSocket tickets.
type TicketStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	tickets map[string]ticket
}

// NewTicketStore creates a store whose tickets live for ttl.
func NewTicketStore(ttl time.Duration) *TicketStore {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketStore{ttl: ttl, now: time.Now, tickets: make(map[string]ticket)}
}

// TTL returns the ticket lifetime.
func (s *TicketStore) TTL() time.Duration {
	return s.ttl
}

// Issue creates a ticket for subject. Expired tickets are swept here.
func (s *TicketStore) Issue(subject string) string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.tickets {
		if now.After(t.expires) {
			delete(s.tickets, k)
		}
	}
	s.tickets[id] = ticket{subject: subject, expires: now.Add(s.ttl)}
	return id
}

// Redeem consumes a ticket and returns its subject.
func (s *TicketStore) Redeem(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return "", ErrTicketInvalid
	}
	delete(s.tickets, id)
	if s.now().After(t.expires) {
		return "", ErrTicketInvalid
	}
	return t.subject, nil
}

// Len returns the number of outstanding tickets.
func (s *TicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}
