package legalrepo

import (
	"context"
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	"github.com/turnotrack/shift-ops-api/internal/adapters/postgres/testutil"
	userrepoadapter "github.com/turnotrack/shift-ops-api/internal/adapters/postgres/userrepo"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	legalrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
)

func TestContract_PostgresLegalRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()

	contracttest.RunLegalRepo(t, func(t *testing.T) (contracttest.LegalRepoHarness, func()) {
		t.Helper()

		// Acceptances reference users.
		if err := userrepoadapter.NewRepo(pool).Upsert(ctx, domain.User{ID: "user-a", Role: domain.RoleEmployee}); err != nil {
			t.Fatalf("seed user: %v", err)
		}

		repo := NewRepo(pool)
		return contracttest.LegalRepoHarness{
			Repo: repo,
			InsertTerm: func(t *testing.T, term legalrepoport.Term) domain.LegalTermID {
				t.Helper()
				id, err := repo.InsertTerm(ctx, term)
				if err != nil {
					t.Fatalf("insert term: %v", err)
				}
				return id
			},
		}, nil
	})
}
