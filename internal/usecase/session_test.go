package usecase

import (
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"

	"walletbridge/internal/domain"
)

func TestNewSessionGeneratesULID(t *testing.T) {
	s := NewSession("https://app.uniswap.org")
	if _, err := ulid.Parse(s.ID); err != nil {
		t.Fatalf("session id %q is not a ULID: %v", s.ID, err)
	}
	if s.URL != "https://app.uniswap.org" {
		t.Errorf("URL = %q", s.URL)
	}
	if s.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}

	other := NewSession("https://app.uniswap.org")
	if other.ID == s.ID {
		t.Error("sessions should get distinct ids")
	}
}

func TestSessionRecordConcurrent(t *testing.T) {
	s := NewSession("https://example.org")

	outcomes := []domain.Outcome{
		domain.OutcomeApproved,
		domain.OutcomeRejected,
		domain.OutcomeDefaulted,
		domain.OutcomeDropped,
		domain.OutcomeFailed,
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, o := range outcomes {
			wg.Add(1)
			go func(o domain.Outcome) {
				defer wg.Done()
				s.Record(o)
			}(o)
		}
	}
	wg.Wait()

	st := s.Stats()
	if st.Handled != 50 {
		t.Errorf("Handled = %d, want 50", st.Handled)
	}
	if st.Approved != 10 || st.Rejected != 10 || st.Defaulted != 10 || st.Dropped != 10 || st.Failed != 10 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestSessionLogAttrsArePairs(t *testing.T) {
	s := NewSession("https://example.org")
	s.Record(domain.OutcomeApproved)

	attrs := s.LogAttrs()
	if len(attrs)%2 != 0 {
		t.Fatalf("LogAttrs must be key/value pairs, got %d items", len(attrs))
	}
	if attrs[0] != "session_id" || attrs[1] != s.ID {
		t.Errorf("first pair = %v=%v", attrs[0], attrs[1])
	}
}
