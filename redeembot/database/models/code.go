package models

import (
	"github.com/uptrace/bun"
)

// Pool names for the managed gift code pools. Codes redeemed through
// operator-posted buttons live outside any pool.
const (
	PoolStandard = "standard"
	PoolPremium  = "premium"
)

type Code struct {
	bun.BaseModel `bun:"table:gift_codes,alias:gc"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Pool  string `bun:"pool,notnull,unique:gift_codes_pool_code"`
	Value string `bun:"code,notnull,unique:gift_codes_pool_code"`
	Used  bool   `bun:"used,notnull,default:false"`
}
