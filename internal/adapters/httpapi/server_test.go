package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/turnotrack/shift-ops-api/internal/adapters/geo"
	memauditlog "github.com/turnotrack/shift-ops-api/internal/adapters/memory/auditlog"
	memclock "github.com/turnotrack/shift-ops-api/internal/adapters/memory/clock"
	memidempotency "github.com/turnotrack/shift-ops-api/internal/adapters/memory/idempotency"
	memincidentrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/incidentrepo"
	memlegalrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/legalrepo"
	memobjectstore "github.com/turnotrack/shift-ops-api/internal/adapters/memory/objectstore"
	memratelimit "github.com/turnotrack/shift-ops-api/internal/adapters/memory/ratelimit"
	memreportrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/reportrepo"
	memshiftrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/shiftrepo"
	memsiterepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/siterepo"
	memsupplyrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/supplyrepo"
	memuserrepo "github.com/turnotrack/shift-ops-api/internal/adapters/memory/userrepo"
	"github.com/turnotrack/shift-ops-api/internal/app/evidence"
	"github.com/turnotrack/shift-ops-api/internal/app/incidents"
	"github.com/turnotrack/shift-ops-api/internal/app/legal"
	"github.com/turnotrack/shift-ops-api/internal/app/pipeline"
	"github.com/turnotrack/shift-ops-api/internal/app/reports"
	"github.com/turnotrack/shift-ops-api/internal/app/shifts"
	"github.com/turnotrack/shift-ops-api/internal/app/supplies"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	legalrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
	shiftrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
	siterepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
)

// passVerifier treats the bearer token as the subject.
type passVerifier struct{}

func (passVerifier) Verify(_ context.Context, token string) (string, error) {
	return token, nil
}

type testApp struct {
	router    http.Handler
	p         *pipeline.Pipeline
	srv       *Server
	clk       *memclock.ManualClock
	shifts    *memshiftrepo.Repo
	incidents *memincidentrepo.Repo
	objects   *memobjectstore.Store
	audit     *memauditlog.Sink
}

// newTestApp wires the full API against in-memory backends.
//
// Seeded data: site 1 at (40.0, -3.0) radius 100m, employees emp-1 through
// emp-3, supervisor sup-1 assigned to site 1, admin adm-1, and active terms
// version 1.0 accepted by everyone except emp-2.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC))
	users := memuserrepo.NewRepo()
	sites := memsiterepo.NewRepo()
	shiftRepo := memshiftrepo.NewRepo()
	legalRepo := memlegalrepo.NewRepo()
	objects := memobjectstore.NewStore()
	audit := memauditlog.NewSink()

	users.Put(domain.User{ID: "emp-1", Role: domain.RoleEmployee})
	users.Put(domain.User{ID: "emp-2", Role: domain.RoleEmployee})
	users.Put(domain.User{ID: "emp-3", Role: domain.RoleEmployee})
	users.Put(domain.User{ID: "sup-1", Role: domain.RoleSupervisor})
	users.Put(domain.User{ID: "adm-1", Role: domain.RoleAdmin})

	sites.Put(siterepoport.Site{ID: 1, Name: "Central", Lat: 40.0, Lng: -3.0, RadiusM: 100})
	sites.Assign("sup-1", 1)

	legalRepo.PutTerm(legalrepoport.Term{ID: 1, Code: "tos", Title: "Terms", Version: "1.0", Active: true})
	for _, u := range []domain.UserID{"emp-1", "emp-3", "sup-1", "adm-1"} {
		if err := legalRepo.Accept(context.Background(), legalrepoport.Acceptance{
			UserID: u, TermID: 1, AcceptedAt: clk.Now(), UserAgent: "seed",
		}); err != nil {
			t.Fatalf("seed acceptance: %v", err)
		}
	}

	fence := geo.NewChecker(sites)
	incidentRepo := memincidentrepo.NewRepo()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(passVerifier{}, users, legalRepo, memidempotency.NewStore(), memratelimit.NewStore(), audit, clk, log)
	srv := NewServer(
		shifts.New(shiftRepo, sites, fence, clk),
		evidence.New(shiftRepo, objects, clk),
		incidents.New(incidentRepo, shiftRepo, sites, clk),
		reports.New(memreportrepo.NewRepo(), sites, clk),
		supplies.New(memsupplyrepo.NewRepo(), sites, clk),
		legal.New(legalRepo, clk),
	)

	return &testApp{
		router:    NewRouter(p, srv, nil),
		p:         p,
		srv:       srv,
		clk:       clk,
		shifts:    shiftRepo,
		incidents: incidentRepo,
		objects:   objects,
		audit:     audit,
	}
}

func (a *testApp) activeShift(t *testing.T, employee domain.UserID) domain.ShiftID {
	t.Helper()
	id, err := a.shifts.Create(context.Background(), shiftrepoport.Shift{
		EmployeeID: employee,
		SiteID:     1,
		State:      domain.ShiftActive,
		StartAt:    a.clk.Now(),
		CreatedAt:  a.clk.Now(),
		UpdatedAt:  a.clk.Now(),
	})
	if err != nil {
		t.Fatalf("seed shift: %v", err)
	}
	return id
}

func (a *testApp) do(method, path, token, idemKey, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, rd)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		r.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, r)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code     int            `json:"code"`
		Message  string         `json:"message"`
		Category string         `json:"category"`
		Details  map[string]any `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, category string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == nil {
		t.Fatalf("expected failure envelope, got %s", rec.Body.String())
	}
	if env.Error.Category != category {
		t.Fatalf("category = %q, want %q", env.Error.Category, category)
	}
	return env
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.do(http.MethodGet, "/healthz", "", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success: %s", rec.Body.String())
	}
}

func TestShiftLifecycle(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-1")

	// Approving before the shift is finalized is a business conflict.
	early := app.do(http.MethodPost, "/shifts/approve", "sup-1", "app-key-000", fmt.Sprintf(`{"shift_id":%d}`, shiftID))
	wantError(t, early, http.StatusConflict, "BUSINESS")

	endBody := fmt.Sprintf(`{"shift_id":%d,"lat":40.0,"lng":-3.0}`, shiftID)
	first := app.do(http.MethodPost, "/shifts/end", "emp-1", "end-key-001", endBody)
	if first.Code != http.StatusOK {
		t.Fatalf("end status = %d: %s", first.Code, first.Body.String())
	}
	var ended struct {
		State string `json:"state"`
	}
	env := decodeEnvelope(t, first)
	if err := json.Unmarshal(env.Data, &ended); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if ended.State != string(domain.ShiftFinalized) {
		t.Fatalf("state = %q, want finalized", ended.State)
	}

	// The same key replays the stored response, byte for byte.
	replay := app.do(http.MethodPost, "/shifts/end", "emp-1", "end-key-001", endBody)
	if replay.Code != http.StatusOK {
		t.Fatalf("replay status = %d", replay.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), replay.Body.Bytes()) {
		t.Fatalf("replay body differs:\n%s\n%s", first.Body.String(), replay.Body.String())
	}

	approveBody := fmt.Sprintf(`{"shift_id":%d}`, shiftID)
	approved := app.do(http.MethodPost, "/shifts/approve", "sup-1", "app-key-001", approveBody)
	if approved.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", approved.Code, approved.Body.String())
	}

	// Already approved: a fresh key hits the business rule.
	again := app.do(http.MethodPost, "/shifts/approve", "sup-1", "app-key-002", approveBody)
	wantError(t, again, http.StatusConflict, "BUSINESS")
}

func TestEndShift_Rejections(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-1")

	// Roughly a kilometer north of the site.
	outside := fmt.Sprintf(`{"shift_id":%d,"lat":40.01,"lng":-3.0}`, shiftID)
	rec := app.do(http.MethodPost, "/shifts/end", "emp-1", "end-key-010", outside)
	wantError(t, rec, http.StatusConflict, "BUSINESS")

	inside := fmt.Sprintf(`{"shift_id":%d,"lat":40.0,"lng":-3.0}`, shiftID)
	rec = app.do(http.MethodPost, "/shifts/end", "emp-3", "end-key-011", inside)
	wantError(t, rec, http.StatusForbidden, "PERMISSION")

	rec = app.do(http.MethodPost, "/shifts/end", "emp-1", "end-key-012", `{"shift_id":999,"lat":40.0,"lng":-3.0}`)
	wantError(t, rec, http.StatusNotFound, "BUSINESS")

	rec = app.do(http.MethodPost, "/shifts/end", "emp-1", "end-key-013", fmt.Sprintf(`{"shift_id":%d}`, shiftID))
	env := wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION")
	if env.Error.Details["field"] != "lat" {
		t.Fatalf("details = %v", env.Error.Details)
	}
}

func TestApproveShift_SupervisorScope(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-1")
	end := fmt.Sprintf(`{"shift_id":%d,"lat":40.0,"lng":-3.0}`, shiftID)
	if rec := app.do(http.MethodPost, "/shifts/end", "emp-1", "end-key-020", end); rec.Code != http.StatusOK {
		t.Fatalf("end status = %d", rec.Code)
	}

	// An employee can never approve.
	body := fmt.Sprintf(`{"shift_id":%d}`, shiftID)
	rec := app.do(http.MethodPost, "/shifts/approve", "emp-1", "app-key-020", body)
	wantError(t, rec, http.StatusForbidden, "PERMISSION")

	// Admins bypass site scoping.
	rec = app.do(http.MethodPost, "/shifts/approve", "adm-1", "app-key-021", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin approve status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIncidentCreate(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-1")

	body := fmt.Sprintf(`{"shift_id":%d,"description":"ladder fell on the loading dock"}`, shiftID)
	rec := app.do(http.MethodPost, "/incidents", "emp-1", "inc-key-001", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	short := fmt.Sprintf(`{"shift_id":%d,"description":"hmm"}`, shiftID)
	rec = app.do(http.MethodPost, "/incidents", "emp-1", "inc-key-002", short)
	wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION")
}

func TestIncidentCreate_ConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-1")
	body := fmt.Sprintf(`{"shift_id":%d,"description":"spill across aisle four"}`, shiftID)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.do(http.MethodPost, "/incidents", "emp-1", "inc-key-race", body)
		}()
	}
	wg.Wait()

	rows, err := app.incidents.ListByShift(context.Background(), shiftID)
	if err != nil {
		t.Fatalf("ListByShift: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("incident rows = %d, want exactly 1", len(rows))
	}
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 64))

func TestEvidenceFlow(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-1")

	reqBody := fmt.Sprintf(`{"action":"request_upload","shift_id":%d,"type":"end"}`, shiftID)
	rec := app.do(http.MethodPost, "/evidence", "emp-1", "ev-key-0001", reqBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("request_upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var grant struct {
		UploadURL   string `json:"upload_url"`
		StoragePath string `json:"storage_path"`
	}
	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &grant); err != nil {
		t.Fatalf("decode grant: %v", err)
	}
	if grant.UploadURL == "" || grant.StoragePath == "" {
		t.Fatalf("incomplete grant: %+v", grant)
	}

	// Simulate the client-side direct upload.
	app.objects.Upload(grant.StoragePath, pngBytes)

	finBody := fmt.Sprintf(
		`{"action":"finalize_upload","shift_id":%d,"type":"end","storage_path":%q,"lat":40.0,"lng":-3.0,"accuracy":4.5,"captured_at":"2026-02-03T09:05:00Z"}`,
		shiftID, grant.StoragePath)
	rec = app.do(http.MethodPost, "/evidence", "emp-1", "ev-key-0002", finBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("finalize status = %d: %s", rec.Code, rec.Body.String())
	}
	var fin struct {
		SHA256   string `json:"sha256"`
		MIMEType string `json:"mime_type"`
		FileSize int64  `json:"file_size"`
	}
	env = decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &fin); err != nil {
		t.Fatalf("decode finalize: %v", err)
	}
	if fin.MIMEType != "image/png" || fin.FileSize != int64(len(pngBytes)) || len(fin.SHA256) != 64 {
		t.Fatalf("unexpected finalize result: %+v", fin)
	}

	// The slot is taken now.
	rec = app.do(http.MethodPost, "/evidence", "emp-1", "ev-key-0003", reqBody)
	wantError(t, rec, http.StatusConflict, "BUSINESS")
}

func TestEvidence_RejectsNonImage(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-1")

	path := fmt.Sprintf("emp-1/%d/end/fake.bin", shiftID)
	app.objects.Upload(path, []byte("plain text, not an image"))

	body := fmt.Sprintf(
		`{"action":"finalize_upload","shift_id":%d,"type":"end","storage_path":%q,"lat":40.0,"lng":-3.0,"accuracy":1,"captured_at":"2026-02-03T09:05:00Z"}`,
		shiftID, path)
	rec := app.do(http.MethodPost, "/evidence", "emp-1", "ev-key-0010", body)
	env := wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION")
	if env.Error.Details["detected"] == "" {
		t.Fatalf("details = %v", env.Error.Details)
	}
}

func TestConsentFlow(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	shiftID := app.activeShift(t, "emp-2")

	rec := app.do(http.MethodGet, "/legal/consent", "emp-2", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d: %s", rec.Code, rec.Body.String())
	}
	var status struct {
		Accepted bool `json:"accepted"`
		Term     struct {
			Version string `json:"version"`
		} `json:"term"`
	}
	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Accepted || status.Term.Version != "1.0" {
		t.Fatalf("unexpected status: %+v", status)
	}

	// Business operations are blocked until the terms are accepted.
	end := fmt.Sprintf(`{"shift_id":%d,"lat":40.0,"lng":-3.0}`, shiftID)
	rec = app.do(http.MethodPost, "/shifts/end", "emp-2", "end-key-030", end)
	blocked := wantError(t, rec, http.StatusForbidden, "PERMISSION")
	if blocked.Error.Details["term_code"] != "tos" {
		t.Fatalf("details = %v", blocked.Error.Details)
	}

	// Pinning a stale version is rejected.
	rec = app.do(http.MethodPost, "/legal/consent", "emp-2", "con-key-001", `{"term_id":99}`)
	wantError(t, rec, http.StatusConflict, "BUSINESS")

	rec = app.do(http.MethodPost, "/legal/consent", "emp-2", "con-key-002", `{"term_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(http.MethodPost, "/shifts/end", "emp-2", "end-key-031", end)
	if rec.Code != http.StatusOK {
		t.Fatalf("end after consent status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConsent_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.do(http.MethodDelete, "/legal/consent", "emp-1", "", "")
	wantError(t, rec, http.StatusMethodNotAllowed, "VALIDATION")
}

func TestReportGenerate(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	body := `{"site_id":1,"period_start":"2026-01-01","period_end":"2026-01-31","filters":{"state":"approved"}}`
	rec := app.do(http.MethodPost, "/reports", "sup-1", "rep-key-001", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		FilePath     string `json:"file_path"`
		DocumentHash string `json:"document_hash"`
	}
	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if out.FilePath == "" || len(out.DocumentHash) != 64 {
		t.Fatalf("unexpected report result: %+v", out)
	}

	// The same parameters always produce the same document hash.
	rec = app.do(http.MethodPost, "/reports", "sup-1", "rep-key-002", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("second report status = %d", rec.Code)
	}
	var second struct {
		DocumentHash string `json:"document_hash"`
	}
	env = decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, &second); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if second.DocumentHash != out.DocumentHash {
		t.Fatalf("document hash changed: %s vs %s", out.DocumentHash, second.DocumentHash)
	}

	unknown := `{"site_id":999,"period_start":"2026-01-01","period_end":"2026-01-31"}`
	rec = app.do(http.MethodPost, "/reports", "sup-1", "rep-key-003", unknown)
	wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION")

	inverted := `{"site_id":1,"period_start":"2026-01-31","period_end":"2026-01-01"}`
	rec = app.do(http.MethodPost, "/reports", "sup-1", "rep-key-004", inverted)
	wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION")
}

func TestSupplyDeliver(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/supplies/deliveries", "sup-1", "sup-key-001", `{"supply_id":7,"site_id":1,"quantity":40}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(http.MethodPost, "/supplies/deliveries", "sup-1", "sup-key-002", `{"supply_id":7,"site_id":1,"quantity":0}`)
	wantError(t, rec, http.StatusUnprocessableEntity, "VALIDATION")

	// Employees cannot record deliveries.
	rec = app.do(http.MethodPost, "/supplies/deliveries", "emp-1", "sup-key-003", `{"supply_id":7,"site_id":1,"quantity":1}`)
	wantError(t, rec, http.StatusForbidden, "PERMISSION")
}

func TestRouter_InboundThrottle(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	// Zero-rate limiter: every request is shed before reaching the pipeline.
	denied := NewRouter(app.p, app.srv, rate.NewLimiter(0, 0))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	denied.ServeHTTP(rec, r)
	wantError(t, rec, http.StatusTooManyRequests, "SYSTEM")
}
