package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Claim is one completed redemption. Rows are append-only; only the
// retention engine ever deletes them.
type Claim struct {
	bun.BaseModel `bun:"table:claims,alias:cl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AccountID string    `bun:"account_id,notnull"`
	PlayerID  string    `bun:"player_id,notnull"`
	Code      string    `bun:"code,notnull"`
	ClaimedAt time.Time `bun:"claimed_at,notnull"`
}
