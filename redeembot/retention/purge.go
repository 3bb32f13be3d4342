// Package retention bounds the claim ledger's on-disk size by deleting the
// oldest calendar months until the database file fits a target.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sangege/redeembot/redeembot/database"
	"github.com/sangege/redeembot/redeembot/database/repositories"
)

type MonthRange struct {
	Year  int
	Month time.Month
	Rows  int64
}

type Report struct {
	InitialBytes int64
	FinalBytes   int64
	Deleted      []MonthRange
}

type Engine struct {
	db     *database.DB
	claims repositories.ClaimRepository

	// mu keeps purge runs mutually exclusive; each month's select-and-delete
	// would otherwise race a concurrent purge over the same rows.
	mu sync.Mutex
}

func NewEngine(db *database.DB, claims repositories.ClaimRepository) *Engine {
	return &Engine{db: db, claims: claims}
}

// Purge deletes whole calendar months of claims, oldest first, until the
// database file is at or below targetBytes or the ledger is empty. The file
// is compacted and remeasured after every month.
func (e *Engine) Purge(ctx context.Context, targetBytes int64) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	size, err := e.db.Size()
	if err != nil {
		return nil, err
	}

	report := &Report{InitialBytes: size, FinalBytes: size}
	if size <= targetBytes {
		return report, nil
	}

	for size > targetBytes {
		year, month, ok, err := e.claims.OldestClaimMonth(ctx)
		if err != nil {
			return report, err
		}
		if !ok {
			break
		}

		cutoff := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
		rows, err := e.claims.DeleteBefore(ctx, cutoff)
		if err != nil {
			return report, fmt.Errorf("failed to delete claims before %s: %w", cutoff, err)
		}
		if rows == 0 {
			// Should be impossible given the oldest-record selection, but a
			// zero-row month must not spin the loop forever.
			slog.Warn("Purge deleted no rows for oldest month, stopping",
				slog.Int("year", year),
				slog.Int("month", int(month)))
			break
		}

		if err := e.db.Vacuum(ctx); err != nil {
			return report, err
		}

		size, err = e.db.Size()
		if err != nil {
			return report, err
		}

		report.Deleted = append(report.Deleted, MonthRange{Year: year, Month: month, Rows: rows})
		report.FinalBytes = size

		slog.Info("Purged ledger month",
			slog.Int("year", year),
			slog.Int("month", int(month)),
			slog.Int64("rows", rows),
			slog.Int64("size_bytes", size))
	}

	report.FinalBytes = size
	return report, nil
}
