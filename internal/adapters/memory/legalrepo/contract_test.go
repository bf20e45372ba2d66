package legalrepo

import (
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	legalrepoport "github.com/turnotrack/shift-ops-api/internal/ports/out/legalrepo"
)

func TestContract_MemoryLegalRepo(t *testing.T) {
	contracttest.RunLegalRepo(t, func(t *testing.T) (contracttest.LegalRepoHarness, func()) {
		t.Helper()
		repo := NewRepo()
		nextID := domain.LegalTermID(0)
		return contracttest.LegalRepoHarness{
			Repo: repo,
			InsertTerm: func(t *testing.T, term legalrepoport.Term) domain.LegalTermID {
				t.Helper()
				nextID++
				term.ID = nextID
				repo.PutTerm(term)
				return term.ID
			},
		}, nil
	})
}
