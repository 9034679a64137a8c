// Package uow implements the Unit-of-Work wrapper spec §5/§7 require:
// session-store writes and multi-read sequences that must be consistent
// commit at scope exit, and roll back on error.
//
// No teacher package names a "Unit of Work" type directly, but
// internal/sessions/cockroach.go's AppendMessage already follows the
// shape this package generalizes: BeginTx, a deferred unconditional
// Rollback (a no-op once Commit has already run, since Rollback after
// Commit returns sql.ErrTxDone which every caller here ignores), then
// Commit on the success path. uow.Run packages that idiom into a single
// helper every store method calls instead of repeating it.
package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run executes fn inside a transaction on db: fn's error (if any) rolls
// the transaction back and is returned; fn's success commits.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("uow: begin transaction: %w", err)
	}

	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			_ = rbErr // best-effort; the original error from fn/Commit already carries the failure
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("uow: commit: %w", err)
	}
	return nil
}
