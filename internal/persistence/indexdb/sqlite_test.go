package indexdb

import (
	"path/filepath"
	"testing"

	"outlands.gg/internal/policy"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndex_Handshakes(t *testing.T) {
	idx := openTestIndex(t)
	idx.RecordHandshake("10.0.0.1:555", 4, true, "")
	idx.RecordHandshake("10.0.0.2:555", 5, false, "protocol version mismatch: server 4, client 5")
	idx.RecordHandshake("10.0.0.3:555", -1, false, "required extension missing on client")
	idx.Flush()

	accepted, err := idx.HandshakeCount(true)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	rejected, err := idx.HandshakeCount(false)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if accepted != 1 || rejected != 2 {
		t.Fatalf("expected 1 accepted / 2 rejected, got %d / %d", accepted, rejected)
	}
}

func TestIndex_PolicyStepsOrdered(t *testing.T) {
	idx := openTestIndex(t)
	victim := "00000000-0000-4000-8000-000000000001"
	for _, step := range []string{"wanted_penalty", "illegal_kill", "bounty_settlement"} {
		idx.RecordPolicy(policy.AuditEntry{Step: step, Victim: victim, Region: "2,-4"})
	}
	idx.Flush()

	steps, err := idx.PolicySteps(victim)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(steps) != 3 || steps[0] != "wanted_penalty" || steps[2] != "bounty_settlement" {
		t.Fatalf("unexpected steps %v", steps)
	}
}

func TestIndex_TrustMutations(t *testing.T) {
	idx := openTestIndex(t)
	idx.RecordTrustMutation("grant", "1,2", "a", "b", true)
	idx.RecordTrustMutation("revoke", "1,2", "c", "b", false)
	idx.RecordTrustMutation("grant", "9,9", "a", "b", true)
	idx.Flush()

	n, err := idx.TrustMutationCount("1,2")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 mutations for 1,2, got %d", n)
	}
}

func TestIndex_RecordAfterCloseIsNoop(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	idx.RecordHandshake("10.0.0.1:555", 4, true, "")
	idx.Flush()
}
