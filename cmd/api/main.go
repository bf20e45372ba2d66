package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/turnotrack/shift-ops-api/internal/adapters/geo"
	"github.com/turnotrack/shift-ops-api/internal/adapters/httpapi"
	memauditlog "github.com/turnotrack/shift-ops-api/internal/adapters/memory/auditlog"
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
	postgres "github.com/turnotrack/shift-ops-api/internal/adapters/postgres"
	pgauditlog "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/auditlog"
	pgidempotency "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/idempotency"
	pglegalrepo "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/legalrepo"
	pgratelimit "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/ratelimit"
	pgshiftrepo "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/shiftrepo"
	pgsiterepo "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/siterepo"
	pguserrepo "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/userrepo"
	"github.com/turnotrack/shift-ops-api/internal/app/evidence"
	"github.com/turnotrack/shift-ops-api/internal/app/incidents"
	"github.com/turnotrack/shift-ops-api/internal/app/legal"
	"github.com/turnotrack/shift-ops-api/internal/app/pipeline"
	"github.com/turnotrack/shift-ops-api/internal/app/reports"
	"github.com/turnotrack/shift-ops-api/internal/app/shifts"
	"github.com/turnotrack/shift-ops-api/internal/app/supplies"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/platform/auth/devverifier"
	"github.com/turnotrack/shift-ops-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/turnotrack/shift-ops-api/internal/platform/clock"
	"github.com/turnotrack/shift-ops-api/internal/platform/config"
	auditlogport "github.com/turnotrack/shift-ops-api/internal/ports/out/auditlog"
	idempotencyport "github.com/turnotrack/shift-ops-api/internal/ports/out/idempotency"
	legalrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
	ratelimitport "github.com/turnotrack/shift-ops-api/internal/ports/out/ratelimit"
	shiftrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
	siterepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/siterepo"
	userrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/userrepo"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	port := getenv("PORT", "8080")

	// Auth configuration:
	// - Production: require JWT_* env vars and verify RS256 bearer tokens
	// - Local dev: set AUTH_MODE=dev to treat the bearer token as the subject
	var verifier pipeline.TokenVerifier
	switch getenv("AUTH_MODE", "jwt") {
	case "dev":
		verifier = devverifier.New(getenv("DEV_SUBJECT", "dev|local"))
	default:
		jwtCfg, err := config.LoadJWTConfigFromEnv()
		if err != nil {
			logger.Error("invalid auth config", slog.String("error", err.Error()))
			os.Exit(1)
		}
		verifier = jwtverifier.New(jwtCfg)
	}

	clk := platformclock.NewSystemClock()

	var (
		users     userrepoport.Repository
		sites     siterepoport.Repository
		shiftRepo shiftrepoport.Repository
		legalRepo legalrepoport.Repository
		idemStore idempotencyport.Store
		rateStore ratelimitport.Store
		auditSink auditlogport.Sink
		cleanup   func()
	)

	incidentRepo := memincidentrepo.NewRepo()
	reportRepo := memreportrepo.NewRepo()
	supplyRepo := memsupplyrepo.NewRepo()
	objects := memobjectstore.NewStore()

	switch getenv("STORAGE_BACKEND", "memory") {
	case "postgres":
		pool, err := postgres.NewPool(context.Background(), os.Getenv("DATABASE_URL"))
		if err != nil {
			logger.Error("invalid postgres config", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cleanup = pool.Close
		if err := postgres.Migrate(context.Background(), pool); err != nil {
			logger.Error("migrate failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		users = pguserrepo.NewRepo(pool)
		sites = pgsiterepo.NewRepo(pool)
		shiftRepo = pgshiftrepo.NewRepo(pool)
		legalRepo = pglegalrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
		rateStore = pgratelimit.NewStore(pool)
		auditSink = pgauditlog.NewSink(pool)
	default:
		memUsers := memuserrepo.NewRepo()
		memSites := memsiterepo.NewRepo()
		memShifts := memshiftrepo.NewRepo()
		memLegal := memlegalrepo.NewRepo()
		seedMemory(memUsers, memSites, memShifts, memLegal, clk.Now())

		users = memUsers
		sites = memSites
		shiftRepo = memShifts
		legalRepo = memLegal
		idemStore = memidempotency.NewStore()
		rateStore = memratelimit.NewStore()
		auditSink = memauditlog.NewSink()
	}

	if cleanup != nil {
		defer cleanup()
	}

	fence := geo.NewChecker(sites)

	p := pipeline.New(verifier, users, legalRepo, idemStore, rateStore, auditSink, clk, logger)
	api := httpapi.NewServer(
		shifts.New(shiftRepo, sites, fence, clk),
		evidence.New(shiftRepo, objects, clk),
		incidents.New(incidentRepo, shiftRepo, sites, clk),
		reports.New(reportRepo, sites, clk),
		supplies.New(supplyRepo, sites, clk),
		legal.New(legalRepo, clk),
	)

	inboundRPS := getenvInt("INBOUND_RPS", 50)
	handler := httpapi.NewRouter(p, api, rate.NewLimiter(rate.Limit(inboundRPS), inboundRPS*2))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", slog.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// seedMemory provisions a minimal dev dataset: three users, one geofenced
// site, an active legal term, and one active shift to exercise the flows.
func seedMemory(
	users *memuserrepo.Repo,
	sites *memsiterepo.Repo,
	shiftRepo *memshiftrepo.Repo,
	legalRepo *memlegalrepo.Repo,
	now time.Time,
) {
	users.Put(domain.User{ID: "dev|employee", Role: domain.RoleEmployee})
	users.Put(domain.User{ID: "dev|supervisor", Role: domain.RoleSupervisor})
	users.Put(domain.User{ID: "dev|admin", Role: domain.RoleAdmin})
	users.Put(domain.User{ID: "dev|local", Role: domain.RoleAdmin})

	sites.Put(siterepoport.Site{ID: 1, Name: "Central", Lat: 40.4168, Lng: -3.7038, RadiusM: 150})
	sites.Assign("dev|supervisor", 1)

	legalRepo.PutTerm(legalrepoport.Term{
		ID: 1, Code: "tos", Title: "Terms of Service", Version: "1.0",
		Content: "dev terms", Active: true,
	})

	_, _ = shiftRepo.Create(context.Background(), shiftrepoport.Shift{
		EmployeeID: "dev|employee",
		SiteID:     1,
		State:      domain.ShiftActive,
		StartAt:    now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
