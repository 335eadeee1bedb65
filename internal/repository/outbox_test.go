package repository

import (
	"regexp"
	"strings"
	"testing"
)

func TestClaimPendingOutboxSQLContract(t *testing.T) {
	if !regexp.MustCompile(`LEAST\(\s*\$4::numeric`).MatchString(claimPendingOutboxSQL) {
		t.Fatalf("claimPendingOutboxSQL must cap retry delay with LEAST(..., $4::numeric)")
	}
	if !strings.Contains(claimPendingOutboxSQL, "random()") {
		t.Fatalf("claimPendingOutboxSQL must include jitter via random()")
	}
	if !strings.Contains(claimPendingOutboxSQL, "interval '1 millisecond'") {
		t.Fatalf("claimPendingOutboxSQL must use interval '1 millisecond' syntax")
	}
	if !strings.Contains(claimPendingOutboxSQL, "LEAST(o.attempts, 30)") {
		t.Fatalf("claimPendingOutboxSQL must clamp exponent with LEAST(o.attempts, 30)")
	}
	if !strings.Contains(claimPendingOutboxSQL, "FOR UPDATE SKIP LOCKED") {
		t.Fatalf("claimPendingOutboxSQL must lock claimed rows with SKIP LOCKED")
	}
}

func TestInsertOutboxEventSQLContract(t *testing.T) {
	// A repeated event_id must be a no-op so period rewrites stay
	// idempotent end-to-end, including their events.
	if !strings.Contains(insertOutboxEventSQL, "ON CONFLICT (event_id) DO NOTHING") {
		t.Fatalf("insertOutboxEventSQL must dedup on event_id")
	}
	if !strings.Contains(insertOutboxEventSQL, "RETURNING id, created_at, updated_at") {
		t.Fatalf("insertOutboxEventSQL must return the stored row metadata")
	}
}
