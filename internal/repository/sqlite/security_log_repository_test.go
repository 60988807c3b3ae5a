package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

func TestSecurityLogRepository_Violations(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecurityLogRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, key := range []string{"login:a", "login:b", "login:a"} {
		v := &models.RateLimitViolation{
			Key:          key,
			Action:       "login",
			RequestCount: 5,
			MaxRequests:  5,
			WindowMs:     900000,
			BlockedUntil: base.Add(time.Duration(i)*time.Minute + 30*time.Minute),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.InsertRateLimitViolation(ctx, v); err != nil {
			t.Fatalf("InsertRateLimitViolation failed: %v", err)
		}
		if v.ID == 0 {
			t.Error("InsertRateLimitViolation did not set ID")
		}
	}

	all, err := repo.ListRateLimitViolations(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRateLimitViolations failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if !all[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("first violation created at %v, want newest first", all[0].CreatedAt)
	}

	forA, err := repo.ListRateLimitViolations(ctx, "login:a", 1)
	if err != nil {
		t.Fatalf("ListRateLimitViolations failed: %v", err)
	}
	if len(forA) != 1 || forA[0].Key != "login:a" {
		t.Errorf("filtered violations = %+v, want one login:a row", forA)
	}
	if forA[0].WindowMs != 900000 {
		t.Errorf("WindowMs = %d, want 900000", forA[0].WindowMs)
	}
}

func TestSecurityLogRepository_CSRFFailures(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecurityLogRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logs := []models.CSRFValidationLog{
		{SessionID: "s1", TokenHint: "abcd...wxyz", IsValid: true, CreatedAt: base},
		{SessionID: "s1", TokenHint: "abcd...wxyz", IsValid: false, Reason: "mismatch", CreatedAt: base.Add(time.Minute)},
		{SessionID: "s2", IsValid: false, Reason: "missing", CreatedAt: base.Add(-time.Hour)},
	}
	for i := range logs {
		if err := repo.InsertCSRFValidationLog(ctx, &logs[i]); err != nil {
			t.Fatalf("InsertCSRFValidationLog failed: %v", err)
		}
	}

	count, err := repo.CountCSRFFailures(ctx, base)
	if err != nil {
		t.Fatalf("CountCSRFFailures failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountCSRFFailures = %d, want 1", count)
	}

	if err := repo.InsertCSRFValidationLog(ctx, nil); !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("nil log error = %v, want ErrInvalidInput", err)
	}
}

func TestSecurityLogRepository_DeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecurityLogRepository(db)
	ctx := context.Background()

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-24 * time.Hour)
	recent := cutoff.Add(time.Hour)

	for _, at := range []time.Time{old, recent} {
		if err := repo.InsertRateLimitLog(ctx, &models.RateLimitLog{Key: "api:x", Action: "api", Success: true, CreatedAt: at}); err != nil {
			t.Fatalf("InsertRateLimitLog failed: %v", err)
		}
		if err := repo.InsertRateLimitViolation(ctx, &models.RateLimitViolation{Key: "api:x", Action: "api", BlockedUntil: at, CreatedAt: at}); err != nil {
			t.Fatalf("InsertRateLimitViolation failed: %v", err)
		}
		if err := repo.InsertCSRFValidationLog(ctx, &models.CSRFValidationLog{IsValid: true, CreatedAt: at}); err != nil {
			t.Fatalf("InsertCSRFValidationLog failed: %v", err)
		}
	}

	removed, err := repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	remaining, err := repo.ListRateLimitViolations(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListRateLimitViolations failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining violations = %d, want 1", len(remaining))
	}
}

func TestSecurityLogRepository_RejectsIncompleteRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecurityLogRepository(db)
	ctx := context.Background()

	if err := repo.InsertRateLimitLog(ctx, &models.RateLimitLog{Action: "api"}); !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("missing key error = %v, want ErrInvalidInput", err)
	}
	if err := repo.InsertRateLimitViolation(ctx, &models.RateLimitViolation{Key: "api:x"}); !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("missing action error = %v, want ErrInvalidInput", err)
	}
}
