package services

import (
	"context"
	"errors"

	"github.com/eventpass/api/internal/repositories"
)

// inlineTx runs the callback on the caller's context without a transaction.
type inlineTx struct{}

func (inlineTx) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func discardEvent(context.Context, string, map[string]any) {}

// notFound reports whether a repository classified err as a missing row.
func notFound(err error) bool {
	var classified repositories.RepositoryError
	if !errors.As(err, &classified) {
		return false
	}
	return classified.IsNotFound()
}

func valuePtr[T any](v T) *T { return &v }
