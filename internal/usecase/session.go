package usecase

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"walletbridge/internal/domain"
)

// Session tracks one page load of the dApp: its id and what the bridge did
// with the messages the page sent.
type Session struct {
	mu        sync.Mutex
	ID        string    `json:"id"` // ULID
	URL       string    `json:"url"`
	StartedAt time.Time `json:"started_at"`
	counts    map[domain.Outcome]int
}

// SessionStats is a snapshot of a session's outcome counters.
type SessionStats struct {
	Handled   int `json:"handled"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Defaulted int `json:"defaulted"`
	Dropped   int `json:"dropped"`
	Failed    int `json:"failed"`
}

// NewSession creates a session for url with a generated ULID.
func NewSession(url string) *Session {
	now := time.Now()
	return &Session{
		ID:        generateULID(now),
		URL:       url,
		StartedAt: now,
		counts:    make(map[domain.Outcome]int),
	}
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Record implements domain.OutcomeRecorder (thread-safe).
func (s *Session) Record(o domain.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[o]++
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionStats{
		Approved:  s.counts[domain.OutcomeApproved],
		Rejected:  s.counts[domain.OutcomeRejected],
		Defaulted: s.counts[domain.OutcomeDefaulted],
		Dropped:   s.counts[domain.OutcomeDropped],
		Failed:    s.counts[domain.OutcomeFailed],
	}
	st.Handled = st.Approved + st.Rejected + st.Defaulted + st.Dropped + st.Failed
	return st
}

// LogAttrs returns slog key/value pairs summarising the session.
func (s *Session) LogAttrs() []any {
	st := s.Stats()
	return []any{
		"session_id", s.ID,
		"url", s.URL,
		"duration", time.Since(s.StartedAt).Round(time.Millisecond),
		"handled", st.Handled,
		"approved", st.Approved,
		"rejected", st.Rejected,
		"defaulted", st.Defaulted,
		"dropped", st.Dropped,
		"failed", st.Failed,
	}
}
