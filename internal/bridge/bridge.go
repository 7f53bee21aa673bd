// Package bridge is the Postgres-side consumer of fast-terms results. It
// bulk-loads a finished response into a temporary table so SQL can join
// against the enumerated values without round-tripping each one.
package bridge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/jmfrees/zombodb/internal/fastterms"
	"github.com/jmfrees/zombodb/pkg/errors"
	"github.com/jmfrees/zombodb/pkg/logger"
	"github.com/jmfrees/zombodb/pkg/postgres"
)

// TableName is the temp table the bridge loads into; it lives for the
// duration of the materializing transaction.
const TableName = "zdb_fast_terms"

type Bridge struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Bridge {
	return &Bridge{
		db:     db,
		logger: logger.WithComponent("pg-bridge"),
	}
}

// Materialize loads every value of resp into a fresh temp table via COPY,
// then invokes fn inside the same transaction so the caller can join
// against it. The table is dropped when the transaction ends. Returns the
// number of rows loaded.
func (b *Bridge) Materialize(ctx context.Context, resp *fastterms.TermsResponse, fn func(tx *sql.Tx, table string) error) (int64, error) {
	var column, columnType string
	switch resp.DataType() {
	case fastterms.DataTypeInt, fastterms.DataTypeLong:
		column, columnType = "id", "bigint"
	case fastterms.DataTypeString:
		column, columnType = "term", "text"
	default:
		return 0, errors.Newf(errors.ErrInvalidInput, "cannot materialize a %s response", resp.DataType())
	}

	var rows int64
	err := b.db.InTx(ctx, func(tx *sql.Tx) error {
		ddl := fmt.Sprintf("CREATE TEMP TABLE %s (%s %s) ON COMMIT DROP", TableName, column, columnType)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating temp table: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(TableName, column))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}

		switch resp.DataType() {
		case fastterms.DataTypeInt, fastterms.DataTypeLong:
			for _, it := range resp.NumberLookupIterators() {
				for it.HasNext() {
					if _, err := stmt.ExecContext(ctx, it.Next()); err != nil {
						stmt.Close()
						return fmt.Errorf("copying id: %w", err)
					}
					rows++
				}
			}
		case fastterms.DataTypeString:
			for _, term := range resp.SortedStrings() {
				if _, err := stmt.ExecContext(ctx, term); err != nil {
					stmt.Close()
					return fmt.Errorf("copying term: %w", err)
				}
				rows++
			}
		}

		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("closing copy: %w", err)
		}

		if fn != nil {
			return fn(tx, TableName)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	b.logger.Info("response materialized",
		"index", resp.Index(),
		"data_type", resp.DataType().String(),
		"rows", rows,
	)
	return rows, nil
}
