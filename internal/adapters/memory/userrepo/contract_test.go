package userrepo

import (
	"testing"

	"github.com/turnotrack/shift-ops-api/internal/adapters/contracttest"
	"github.com/turnotrack/shift-ops-api/internal/domain"
)

func TestContract_MemoryUserRepo(t *testing.T) {
	contracttest.RunUserRepo(t, func(t *testing.T) (contracttest.UserRepoHarness, func()) {
		t.Helper()
		repo := NewRepo()
		return contracttest.UserRepoHarness{
			Repo: repo,
			Put: func(t *testing.T, u domain.User) {
				t.Helper()
				repo.Put(u)
			},
		}, nil
	})
}
