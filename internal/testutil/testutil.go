// Package testutil provides in-memory implementations of the repository
// interfaces so service tests run without a database. The fakes deep-copy
// on the way in and out; mutating a returned entity never leaks into the
// store until Update is called, mirroring how gorm materializes rows.
package testutil

import (
	"context"

	"bizledger/internal/apperror"
)

// FakeTxManager satisfies repository.TransactionManager without any
// transactional semantics: the callback runs against the same stores.
type FakeTxManager struct{}

func (FakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func notFound(entity string, id any) error {
	return apperror.NotFoundf("%s %v not found", entity, id)
}
