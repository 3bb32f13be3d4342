package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sangege/redeembot/redeembot/database/models"
	"github.com/uptrace/bun"
)

type ClaimRepository interface {
	// Record appends one completed redemption. Rows are never updated.
	Record(ctx context.Context, accountID, playerID, code string, at time.Time) (*models.Claim, error)
	// LastClaim returns the most recent claim matching either the account or
	// the player id. The OR match deliberately catches accounts rotating
	// player ids (or the reverse) to dodge the cooldown. Returns nil when
	// neither has claimed before.
	LastClaim(ctx context.Context, accountID, playerID string) (*models.Claim, error)
	// LastPlayerID returns the player id the account used most recently, or
	// empty when the account has no claims.
	LastPlayerID(ctx context.Context, accountID string) (string, error)
	HistoryByAccount(ctx context.Context, accountID string) ([]*models.Claim, error)
	HistoryByPlayer(ctx context.Context, playerID string) ([]*models.Claim, error)
	// OldestClaimMonth reports the calendar month (UTC) of the oldest claim.
	OldestClaimMonth(ctx context.Context) (year int, month time.Month, ok bool, err error)
	// DeleteBefore removes all claims strictly older than cutoff and returns
	// the number of rows deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type claimRepository struct {
	db *bun.DB
}

func NewClaimRepository(db *bun.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Record(ctx context.Context, accountID, playerID, code string, at time.Time) (*models.Claim, error) {
	claim := &models.Claim{
		AccountID: accountID,
		PlayerID:  playerID,
		Code:      code,
		ClaimedAt: at.UTC(),
	}

	if _, err := r.db.NewInsert().Model(claim).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to record claim: %w", err)
	}

	return claim, nil
}

func (r *claimRepository) LastClaim(ctx context.Context, accountID, playerID string) (*models.Claim, error) {
	claim := new(models.Claim)
	err := r.db.NewSelect().
		Model(claim).
		Where("account_id = ?", accountID).
		WhereOr("player_id = ?", playerID).
		OrderExpr("claimed_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last claim: %w", err)
	}
	return claim, nil
}

func (r *claimRepository) LastPlayerID(ctx context.Context, accountID string) (string, error) {
	claim := new(models.Claim)
	err := r.db.NewSelect().
		Model(claim).
		Where("account_id = ?", accountID).
		OrderExpr("claimed_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last player id: %w", err)
	}
	return claim.PlayerID, nil
}

func (r *claimRepository) HistoryByAccount(ctx context.Context, accountID string) ([]*models.Claim, error) {
	var claims []*models.Claim
	err := r.db.NewSelect().
		Model(&claims).
		Where("account_id = ?", accountID).
		OrderExpr("claimed_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account history: %w", err)
	}
	return claims, nil
}

func (r *claimRepository) HistoryByPlayer(ctx context.Context, playerID string) ([]*models.Claim, error) {
	var claims []*models.Claim
	err := r.db.NewSelect().
		Model(&claims).
		Where("player_id = ?", playerID).
		OrderExpr("claimed_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get player history: %w", err)
	}
	return claims, nil
}

func (r *claimRepository) OldestClaimMonth(ctx context.Context) (int, time.Month, bool, error) {
	claim := new(models.Claim)
	err := r.db.NewSelect().
		Model(claim).
		OrderExpr("claimed_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to get oldest claim: %w", err)
	}

	at := claim.ClaimedAt.UTC()
	return at.Year(), at.Month(), true, nil
}

func (r *claimRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Claim)(nil)).
		Where("claimed_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old claims: %w", err)
	}
	return res.RowsAffected()
}
