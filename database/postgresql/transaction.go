package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/gaborage/go-rowkit/database/internal/tracking"
)

// WithStatementTimeout runs fn inside a transaction whose statements are
// cancelled by the server after timeout. The transaction commits when fn
// succeeds and rolls back otherwise. Timeouts surface as types.ErrStatementTimeout.
func (d *Driver) WithStatementTimeout(ctx context.Context, timeout time.Duration, fn func(q tracking.Querier) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err == nil {
			err = tx.Commit()
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Warn().Err(rbErr).Msg("Failed to roll back statement timeout transaction")
		}
	}()

	setTimeout := fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())
	if _, err = tx.ExecContext(ctx, setTimeout); err != nil {
		return err
	}

	if err = fn(tx); err != nil {
		return translateTimeout(err)
	}
	return nil
}
