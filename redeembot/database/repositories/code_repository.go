package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sangege/redeembot/redeembot/database/models"
	"github.com/uptrace/bun"
)

// ErrNoCodesLeft signals pool exhaustion. It is an expected condition, not a
// storage failure.
var ErrNoCodesLeft = errors.New("no unused codes left in pool")

type CodeRepository interface {
	// BulkInsert stores the distinct, non-empty trimmed values into the pool.
	// Values already present in the pool are silently skipped. Returns the
	// number of rows actually inserted.
	BulkInsert(ctx context.Context, pool string, values []string) (int, error)
	// DrawUnused picks one unused code from the pool uniformly at random and
	// marks it used, as a single atomic operation with respect to concurrent
	// callers. Returns ErrNoCodesLeft when the pool has no unused codes.
	DrawUnused(ctx context.Context, pool string) (*models.Code, error)
	// MarkUsed marks a code used. Marking an already-used or absent code is a
	// no-op. Also used to poison codes the oracle reported as unusable.
	MarkUsed(ctx context.Context, pool, value string) error
	// ResetPool deletes every code in the pool, used or not.
	ResetPool(ctx context.Context, pool string) error
	Stats(ctx context.Context, pool string) (used int, total int, err error)
}

type codeRepository struct {
	db *bun.DB

	// drawMu serializes pick-and-mark so two concurrent draws can never
	// select the same row before either marks it.
	drawMu sync.Mutex
}

func NewCodeRepository(db *bun.DB) CodeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) BulkInsert(ctx context.Context, pool string, values []string) (int, error) {
	seen := make(map[string]struct{}, len(values))
	codes := make([]*models.Code, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		codes = append(codes, &models.Code{Pool: pool, Value: v})
	}

	if len(codes) == 0 {
		return 0, nil
	}

	res, err := r.db.NewInsert().
		Model(&codes).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to insert codes: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inserted codes: %w", err)
	}

	return int(inserted), nil
}

func (r *codeRepository) DrawUnused(ctx context.Context, pool string) (*models.Code, error) {
	r.drawMu.Lock()
	defer r.drawMu.Unlock()

	code := new(models.Code)
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(code).
			Where("pool = ? AND used = ?", pool, false).
			OrderExpr("RANDOM()").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoCodesLeft
		}
		if err != nil {
			return fmt.Errorf("failed to select unused code: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*models.Code)(nil)).
			Set("used = ?", true).
			Where("id = ? AND used = ?", code.ID, false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark drawn code used: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != 1 {
			return fmt.Errorf("drawn code %q was taken concurrently", code.Value)
		}

		code.Used = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return code, nil
}

func (r *codeRepository) MarkUsed(ctx context.Context, pool, value string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Code)(nil)).
		Set("used = ?", true).
		Where("pool = ? AND code = ?", pool, value).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark code used: %w", err)
	}
	return nil
}

func (r *codeRepository) ResetPool(ctx context.Context, pool string) error {
	_, err := r.db.NewDelete().
		Model((*models.Code)(nil)).
		Where("pool = ?", pool).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset pool %s: %w", pool, err)
	}
	return nil
}

func (r *codeRepository) Stats(ctx context.Context, pool string) (int, int, error) {
	total, err := r.db.NewSelect().
		Model((*models.Code)(nil)).
		Where("pool = ?", pool).
		Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count codes: %w", err)
	}

	used, err := r.db.NewSelect().
		Model((*models.Code)(nil)).
		Where("pool = ? AND used = ?", pool, true).
		Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count used codes: %w", err)
	}

	return used, total, nil
}
