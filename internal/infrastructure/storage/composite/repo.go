package composite

import (
	"context"
	"errors"

	"polyticker/internal/application/port"
	"polyticker/internal/domain"
)

// Repo fans every write out to all of its repositories.
type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

// UpsertLatestTrade writes to every repository and returns the first error.
func (r *Repo) UpsertLatestTrade(ctx context.Context, t domain.TradeRecord) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.UpsertLatestTrade(ctx, t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		errs = append(errs, repo.Close())
	}
	return errors.Join(errs...)
}

var _ port.Repository = (*Repo)(nil)
