package claim

import (
	"time"

	"github.com/sangege/redeembot/redeembot/database/models"
)

// Privileged accounts unlock a second claim on the 16th of the month.
const privilegedUnlockDay = 16

// NextEligible computes the first instant (UTC) at which a new pool claim is
// allowed after a claim at prior. A claim before the 16th leaves privileged
// accounts eligible again on the 16th of the same month; everyone else waits
// for the first of the following month.
func NextEligible(prior time.Time, privileged bool) time.Time {
	prior = prior.UTC()
	if privileged && prior.Day() < privilegedUnlockDay {
		return time.Date(prior.Year(), prior.Month(), privilegedUnlockDay, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(prior.Year(), prior.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// Eligible evaluates the cooldown gate against the last recorded claim.
// When not eligible it returns the instant the caller becomes eligible, for
// display by the platform layer.
func Eligible(last *models.Claim, privileged bool, now time.Time) (bool, time.Time) {
	if last == nil {
		return true, time.Time{}
	}
	next := NextEligible(last.ClaimedAt, privileged)
	return !now.UTC().Before(next), next
}

// DrawPool selects the pool to draw from: privileged accounts draw premium
// codes from the 16th onward, mirroring the cooldown unlock.
func DrawPool(privileged bool, now time.Time) string {
	if privileged && now.UTC().Day() >= privilegedUnlockDay {
		return models.PoolPremium
	}
	return models.PoolStandard
}
