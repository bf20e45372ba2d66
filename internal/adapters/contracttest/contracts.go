package contracttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/turnotrack/shift-ops-api/internal/domain"
	auditlogport "github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
	idempotencyport "github.com/turnotrack/shift-ops-api/internal/ports/out/idempotency"
	legalrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
	ratelimitport "github.com/turnotrack/shift-ops-api/internal/ports/out/ratelimit"
	shiftrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
	userrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type RateLimitStoreFactory func(t *testing.T) (ratelimitport.Store, CleanupFunc)
type AuditSinkFactory func(t *testing.T) (auditlogport.Sink, CleanupFunc)

// ShiftRepoHarness bundles a repository with identities the backend has
// already provisioned (Postgres enforces user/site foreign keys, memory
// does not care).
type ShiftRepoHarness struct {
	Repo          shiftrepoport.Repository
	Employee      domain.UserID
	OtherEmployee domain.UserID
	Site          domain.SiteID
}

type ShiftRepoFactory func(t *testing.T) (ShiftRepoHarness, CleanupFunc)

// UserRepoHarness bundles a repository with a backend-specific seeding hook.
type UserRepoHarness struct {
	Repo userrepoport.Repository
	Put  func(t *testing.T, u domain.User)
}

type UserRepoFactory func(t *testing.T) (UserRepoHarness, CleanupFunc)

// LegalRepoHarness bundles a repository with a backend-specific hook that
// inserts a terms version and returns its id.
type LegalRepoHarness struct {
	Repo       legalrepoport.Repository
	InsertTerm func(t *testing.T, term legalrepoport.Term) domain.LegalTermID
}

type LegalRepoFactory func(t *testing.T) (LegalRepoHarness, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	id := idempotencyport.Identity{UserID: "user-1", Operation: "shifts_end", Key: "key-00000001"}
	const fp = "fp-aaa"

	claim, err := store.Claim(ctx, id, fp)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claim.Outcome != idempotencyport.OutcomeClaimed {
		t.Fatalf("expected Claimed, got %s", claim.Outcome)
	}

	// Same identity mid-flight.
	claim, err = store.Claim(ctx, id, fp)
	if err != nil {
		t.Fatalf("Claim duplicate: %v", err)
	}
	if claim.Outcome != idempotencyport.OutcomeProcessing {
		t.Fatalf("expected Processing, got %s", claim.Outcome)
	}

	// Same key, different payload.
	claim, err = store.Claim(ctx, id, "fp-bbb")
	if err != nil {
		t.Fatalf("Claim conflict: %v", err)
	}
	if claim.Outcome != idempotencyport.OutcomePayloadConflict {
		t.Fatalf("expected PayloadConflict, got %s", claim.Outcome)
	}

	body := []byte(`{"success":true}`)
	if err := store.Finalize(ctx, id, 200, body); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	claim, err = store.Claim(ctx, id, fp)
	if err != nil {
		t.Fatalf("Claim after finalize: %v", err)
	}
	if claim.Outcome != idempotencyport.OutcomeReplay {
		t.Fatalf("expected Replay, got %s", claim.Outcome)
	}
	if claim.Stored.StatusCode != 200 || string(claim.Stored.Body) != string(body) {
		t.Fatalf("unexpected stored record: %+v", claim.Stored)
	}
	if claim.Stored.State != idempotencyport.StateCompleted {
		t.Fatalf("expected completed state, got %s", claim.Stored.State)
	}

	// A completed record never transitions again.
	if err := store.Finalize(ctx, id, 500, []byte("x")); err == nil {
		t.Fatalf("expected second Finalize to fail")
	}

	// A fresh key is independent.
	id2 := id
	id2.Key = "key-00000002"
	claim, err = store.Claim(ctx, id2, fp)
	if err != nil {
		t.Fatalf("Claim fresh key: %v", err)
	}
	if claim.Outcome != idempotencyport.OutcomeClaimed {
		t.Fatalf("expected Claimed for fresh key, got %s", claim.Outcome)
	}

	// Exactly one concurrent caller wins the claim.
	race := idempotencyport.Identity{UserID: "user-1", Operation: "shifts_end", Key: "key-racing-1"}
	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := store.Claim(ctx, race, fp)
			if err != nil {
				return
			}
			if c.Outcome == idempotencyport.OutcomeClaimed {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if claimed != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", claimed)
	}
}

func RunRateLimitStore(t *testing.T, newStore RateLimitStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	w1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for want := 1; want <= 3; want++ {
		got, err := store.Incr(ctx, "u1:1.2.3.4:shifts_end", w1)
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}

	// Distinct buckets do not interfere.
	got, err := store.Incr(ctx, "u2:1.2.3.4:shifts_end", w1)
	if err != nil {
		t.Fatalf("Incr other bucket: %v", err)
	}
	if got != 1 {
		t.Fatalf("other bucket count = %d, want 1", got)
	}

	// Advancing the window resets the counter.
	w2 := w1.Add(time.Minute)
	got, err = store.Incr(ctx, "u1:1.2.3.4:shifts_end", w2)
	if err != nil {
		t.Fatalf("Incr next window: %v", err)
	}
	if got != 1 {
		t.Fatalf("next window count = %d, want 1", got)
	}
}

func RunShiftRepo(t *testing.T, newRepo ShiftRepoFactory) {
	t.Helper()
	ctx := context.Background()

	h, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	id, err := h.Repo.Create(ctx, shiftrepoport.Shift{
		EmployeeID: h.Employee,
		SiteID:     h.Site,
		State:      domain.ShiftActive,
		StartAt:    start,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.EmployeeID != h.Employee || got.SiteID != h.Site || got.State != domain.ShiftActive {
		t.Fatalf("unexpected shift: %+v", got)
	}

	if _, err := h.Repo.GetByID(ctx, id+1000); !errors.Is(err, shiftrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Ending someone else's shift must not transition it.
	endAt := start.Add(8 * time.Hour)
	ok, err := h.Repo.End(ctx, id, h.OtherEmployee, endAt, 40.0, -3.7)
	if err != nil {
		t.Fatalf("End wrong employee: %v", err)
	}
	if ok {
		t.Fatalf("expected guarded End to refuse wrong employee")
	}

	// Approving an active shift must not transition it.
	ok, err = h.Repo.Approve(ctx, id, h.OtherEmployee, endAt)
	if err != nil {
		t.Fatalf("Approve active: %v", err)
	}
	if ok {
		t.Fatalf("expected guarded Approve to refuse active shift")
	}

	ok, err = h.Repo.End(ctx, id, h.Employee, endAt, 40.0, -3.7)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if !ok {
		t.Fatalf("expected End to succeed")
	}
	got, err = h.Repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID after end: %v", err)
	}
	if got.State != domain.ShiftFinalized || got.EndAt == nil || got.EndLat == nil {
		t.Fatalf("unexpected shift after end: %+v", got)
	}

	// Second end loses the guard.
	ok, err = h.Repo.End(ctx, id, h.Employee, endAt, 40.0, -3.7)
	if err != nil {
		t.Fatalf("End twice: %v", err)
	}
	if ok {
		t.Fatalf("expected second End to refuse")
	}

	ok, err = h.Repo.Approve(ctx, id, h.OtherEmployee, endAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !ok {
		t.Fatalf("expected Approve to succeed")
	}
	got, err = h.Repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID after approve: %v", err)
	}
	if got.State != domain.ShiftApproved || got.ApprovedBy == nil || *got.ApprovedBy != h.OtherEmployee {
		t.Fatalf("unexpected shift after approve: %+v", got)
	}

	// One photo per (shift, type).
	photo := shiftrepoport.Photo{
		ShiftID:     id,
		UserID:      h.Employee,
		StoragePath: "user/1/end/obj.bin",
		Type:        domain.PhotoEnd,
		Lat:         40.0,
		Lng:         -3.7,
		Accuracy:    5,
		SHA256:      "deadbeef",
		MIMEType:    "image/jpeg",
		FileSize:    1024,
		CapturedAt:  endAt,
		CreatedAt:   endAt,
	}
	if err := h.Repo.AddPhoto(ctx, photo); err != nil {
		t.Fatalf("AddPhoto: %v", err)
	}
	if err := h.Repo.AddPhoto(ctx, photo); !errors.Is(err, shiftrepoport.ErrDuplicatePhoto) {
		t.Fatalf("expected ErrDuplicatePhoto, got %v", err)
	}
	n, err := h.Repo.CountPhotos(ctx, id, domain.PhotoEnd)
	if err != nil {
		t.Fatalf("CountPhotos: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountPhotos = %d, want 1", n)
	}
	n, err = h.Repo.CountPhotos(ctx, id, domain.PhotoStart)
	if err != nil {
		t.Fatalf("CountPhotos start: %v", err)
	}
	if n != 0 {
		t.Fatalf("CountPhotos start = %d, want 0", n)
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	h, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	h.Put(t, domain.User{ID: "user-a", Role: domain.RoleEmployee})
	u, err := h.Repo.GetByID(ctx, "user-a")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u.Role != domain.RoleEmployee {
		t.Fatalf("unexpected role: %s", u.Role)
	}

	if _, err := h.Repo.GetByID(ctx, "user-missing"); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func RunLegalRepo(t *testing.T, newRepo LegalRepoFactory) {
	t.Helper()
	ctx := context.Background()

	h, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, err := h.Repo.ActiveTerm(ctx); !errors.Is(err, legalrepoport.ErrNoActiveTerm) {
		t.Fatalf("expected ErrNoActiveTerm, got %v", err)
	}

	termID := h.InsertTerm(t, legalrepoport.Term{
		Code: "tos", Title: "Terms of Service", Version: "1.0", Content: "v1", Active: true,
	})

	term, err := h.Repo.ActiveTerm(ctx)
	if err != nil {
		t.Fatalf("ActiveTerm: %v", err)
	}
	if term.ID != termID || term.Version != "1.0" {
		t.Fatalf("unexpected term: %+v", term)
	}

	if _, ok, err := h.Repo.LatestAcceptance(ctx, "user-a", termID); err != nil || ok {
		t.Fatalf("expected no acceptance, got ok=%v err=%v", ok, err)
	}

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ip := "1.2.3.4"
	if err := h.Repo.Accept(ctx, legalrepoport.Acceptance{
		UserID: "user-a", TermID: termID, AcceptedAt: at, IPAddress: &ip, UserAgent: "ua/1",
	}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	acc, ok, err := h.Repo.LatestAcceptance(ctx, "user-a", termID)
	if err != nil || !ok {
		t.Fatalf("LatestAcceptance: ok=%v err=%v", ok, err)
	}
	if !acc.AcceptedAt.Equal(at) || acc.IPAddress == nil || *acc.IPAddress != ip {
		t.Fatalf("unexpected acceptance: %+v", acc)
	}

	// Re-acceptance refreshes, it never duplicates.
	at2 := at.Add(time.Hour)
	if err := h.Repo.Accept(ctx, legalrepoport.Acceptance{
		UserID: "user-a", TermID: termID, AcceptedAt: at2, UserAgent: "ua/2",
	}); err != nil {
		t.Fatalf("Accept again: %v", err)
	}
	acc, ok, err = h.Repo.LatestAcceptance(ctx, "user-a", termID)
	if err != nil || !ok {
		t.Fatalf("LatestAcceptance 2: ok=%v err=%v", ok, err)
	}
	if !acc.AcceptedAt.Equal(at2) || acc.IPAddress != nil {
		t.Fatalf("unexpected refreshed acceptance: %+v", acc)
	}

	// Activating a new version deactivates the old one.
	term2ID := h.InsertTerm(t, legalrepoport.Term{
		Code: "tos", Title: "Terms of Service", Version: "2.0", Content: "v2", Active: true,
	})
	term, err = h.Repo.ActiveTerm(ctx)
	if err != nil {
		t.Fatalf("ActiveTerm v2: %v", err)
	}
	if term.ID != term2ID || term.Version != "2.0" {
		t.Fatalf("unexpected active term: %+v", term)
	}
	if _, ok, _ := h.Repo.LatestAcceptance(ctx, "user-a", term2ID); ok {
		t.Fatalf("acceptance must not carry over to the new version")
	}
}

func RunAuditSink(t *testing.T, newSink AuditSinkFactory) {
	t.Helper()
	ctx := context.Background()

	sink, cleanup := newSink(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	err := sink.Write(ctx, auditlogport.Entry{
		UserID:    "user-a",
		Action:    "SHIFT_END",
		Context:   map[string]any{"shift_id": 7},
		RequestID: "req-1",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Context is optional.
	err = sink.Write(ctx, auditlogport.Entry{
		UserID:    "user-a",
		Action:    "SHIFT_APPROVE",
		RequestID: "req-2",
		CreatedAt: time.Date(2026, 3, 1, 9, 1, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Write without context: %v", err)
	}
}
