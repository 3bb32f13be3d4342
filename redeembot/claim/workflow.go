// Package claim implements the redemption workflow: the cooldown gate, the
// per-account claim sessions and the state machine that drives a request
// from identity input through challenge verification to a terminal outcome.
package claim

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/sangege/redeembot/redeembot/database/repositories"
	"github.com/sangege/redeembot/redeembot/oracle"
)

type Status string

const (
	StatusAwaitingIdentity Status = "awaiting_identity"
	StatusAwaitingAnswer   Status = "awaiting_answer"
	StatusSucceeded        Status = "succeeded"
	StatusRejected         Status = "rejected"
	StatusSystemError      Status = "system_error"
)

type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInvalidIdentity      Reason = "invalid_identity"
	ReasonCooldownActive       Reason = "cooldown_active"
	ReasonChallengeUnavailable Reason = "challenge_unavailable"
	ReasonMalformedAnswer      Reason = "malformed_answer"
	ReasonRetryChallenge       Reason = "retry_challenge"
	ReasonPoolExhausted        Reason = "pool_exhausted"
	ReasonAlreadyRedeemed      Reason = "already_redeemed"
	ReasonOracleUnreachable    Reason = "oracle_unreachable"
	ReasonCodeUnusable         Reason = "code_unusable"
	ReasonCodeIntegrity        Reason = "code_integrity"
	ReasonUnexpectedOutcome    Reason = "unexpected_outcome"
	ReasonSessionExpired       Reason = "session_expired"
	ReasonStorageFailure       Reason = "storage_failure"
)

// Result is what the platform layer renders. Message carries oracle detail
// for operator logging only and must never be shown to the caller.
type Result struct {
	Status       Status
	Reason       Reason
	NextEligible time.Time
	Challenge    *oracle.Challenge
	Code         string
	Message      string
}

var (
	playerIDPattern = regexp.MustCompile(`^\d+$`)
	answerPattern   = regexp.MustCompile(`^\d{4}$`)
)

type Workflow struct {
	codes    repositories.CodeRepository
	claims   repositories.ClaimRepository
	oracle   oracle.Client
	sessions *SessionStore
	now      func() time.Time
}

func NewWorkflow(codes repositories.CodeRepository, claims repositories.ClaimRepository, oc oracle.Client, sessions *SessionStore) *Workflow {
	return &Workflow{
		codes:    codes,
		claims:   claims,
		oracle:   oc,
		sessions: sessions,
		now:      time.Now,
	}
}

func (w *Workflow) Sessions() *SessionStore {
	return w.sessions
}

// Begin opens a session for the account. targetCode is empty for pool-drawn
// claims and set for targeted redemptions of operator-supplied codes.
func (w *Workflow) Begin(accountID string, privileged bool, targetCode string) *Session {
	return w.sessions.Begin(accountID, privileged, targetCode)
}

// SubmitIdentity validates the player id, applies the cooldown gate for
// pool-drawn claims and issues the verification challenge.
func (w *Workflow) SubmitIdentity(ctx context.Context, accountID, playerID string) *Result {
	sess, ok := w.sessions.Get(accountID)
	if !ok {
		return &Result{Status: StatusRejected, Reason: ReasonSessionExpired}
	}

	if !playerIDPattern.MatchString(playerID) {
		w.sessions.End(accountID)
		return &Result{Status: StatusRejected, Reason: ReasonInvalidIdentity}
	}
	sess.PlayerID = playerID

	if res := w.checkCooldown(ctx, sess); res != nil {
		return res
	}

	return w.issueChallenge(ctx, sess, ReasonNone)
}

// SubmitAnswer resolves the claim: it validates the answer, draws or reuses
// the code to redeem and forwards both to the oracle, then maps the outcome.
func (w *Workflow) SubmitAnswer(ctx context.Context, accountID, answer string) *Result {
	sess, ok := w.sessions.Get(accountID)
	if !ok {
		return &Result{Status: StatusRejected, Reason: ReasonSessionExpired}
	}

	if !answerPattern.MatchString(answer) {
		// The stale challenge id is discarded; a fresh challenge goes out.
		return w.issueChallenge(ctx, sess, ReasonMalformedAnswer)
	}

	// Re-check the gate: another claim may have landed while the caller was
	// solving the challenge.
	if res := w.checkCooldown(ctx, sess); res != nil {
		return res
	}

	sess.State = StateResolving

	code := sess.TargetCode
	pooled := code == ""
	if pooled {
		if sess.Reserved != "" {
			code = sess.Reserved
		} else {
			sess.Pool = DrawPool(sess.Privileged, w.now())
			drawn, err := w.codes.DrawUnused(ctx, sess.Pool)
			if errors.Is(err, repositories.ErrNoCodesLeft) {
				w.sessions.End(accountID)
				slog.Warn("Gift code pool exhausted",
					slog.String("pool", sess.Pool),
					slog.String("account_id", accountID))
				return &Result{Status: StatusSystemError, Reason: ReasonPoolExhausted}
			}
			if err != nil {
				w.sessions.End(accountID)
				slog.Error("Failed to draw gift code",
					slog.String("type", "db"),
					slog.String("pool", sess.Pool),
					slog.Any("error", err))
				return &Result{Status: StatusSystemError, Reason: ReasonStorageFailure}
			}
			code = drawn.Value
			// Hold the drawn code so a challenge retry redeems it instead of
			// burning another one.
			sess.Reserved = code
		}
	}

	out, err := w.oracle.Redeem(ctx, sess.PlayerID, code, sess.ChallengeID, answer)
	if err != nil {
		w.sessions.End(accountID)
		slog.Error("Redemption oracle unreachable",
			slog.String("account_id", accountID),
			slog.String("player_id", sess.PlayerID),
			slog.String("code", code),
			slog.Any("error", err))
		return &Result{Status: StatusSystemError, Reason: ReasonOracleUnreachable}
	}

	return w.resolve(ctx, sess, code, pooled, out)
}

// checkCooldown returns a rejection result when the gate blocks the session,
// nil otherwise. Targeted redemptions are exempt.
func (w *Workflow) checkCooldown(ctx context.Context, sess *Session) *Result {
	if sess.TargetCode != "" {
		return nil
	}

	last, err := w.claims.LastClaim(ctx, sess.AccountID, sess.PlayerID)
	if err != nil {
		w.sessions.End(sess.AccountID)
		slog.Error("Failed to look up last claim",
			slog.String("type", "db"),
			slog.String("account_id", sess.AccountID),
			slog.Any("error", err))
		return &Result{Status: StatusSystemError, Reason: ReasonStorageFailure}
	}

	if ok, next := Eligible(last, sess.Privileged, w.now()); !ok {
		w.sessions.End(sess.AccountID)
		return &Result{Status: StatusRejected, Reason: ReasonCooldownActive, NextEligible: next}
	}

	return nil
}

func (w *Workflow) issueChallenge(ctx context.Context, sess *Session, reason Reason) *Result {
	ch, err := w.oracle.IssueChallenge(ctx)
	if err != nil {
		w.sessions.End(sess.AccountID)
		slog.Error("Failed to issue verification challenge",
			slog.String("account_id", sess.AccountID),
			slog.Any("error", err))
		return &Result{Status: StatusSystemError, Reason: ReasonChallengeUnavailable}
	}

	sess.ChallengeID = ch.ID
	sess.State = StateAwaitingAnswer
	return &Result{Status: StatusAwaitingAnswer, Reason: reason, Challenge: ch}
}

// resolve maps the oracle outcome onto a transition. Pool-drawn and targeted
// codes are handled asymmetrically: a bad outcome for a freshly drawn code
// is a system problem and poisons the code, while the same outcome for a
// shared operator code is an expected rejection.
func (w *Workflow) resolve(ctx context.Context, sess *Session, code string, pooled bool, out *oracle.Outcome) *Result {
	switch {
	case out.Code == oracle.OutcomeSuccess:
		w.sessions.End(sess.AccountID)
		// Pool codes were already marked used by the draw.
		if _, err := w.claims.Record(ctx, sess.AccountID, sess.PlayerID, code, w.now()); err != nil {
			// The oracle already redeemed; do not tell the caller it failed.
			slog.Error("Failed to record claim after successful redemption",
				slog.String("type", "db"),
				slog.String("account_id", sess.AccountID),
				slog.String("code", code),
				slog.Any("error", err))
		}
		return &Result{Status: StatusSucceeded, Code: code, Message: out.Message}

	case out.Code == oracle.OutcomeAlreadyClaimed:
		w.sessions.End(sess.AccountID)
		if !pooled {
			return &Result{Status: StatusRejected, Reason: ReasonAlreadyRedeemed, Message: out.Message}
		}
		// A freshly drawn code should never already be claimed.
		slog.Warn("Drawn code was already claimed",
			slog.String("pool", sess.Pool),
			slog.String("code", code))
		w.poison(ctx, sess.Pool, code)
		return &Result{Status: StatusSystemError, Reason: ReasonCodeIntegrity, Code: code, Message: out.Message}

	case oracle.IsCodeUnusable(out.Code):
		w.sessions.End(sess.AccountID)
		if !pooled {
			return &Result{Status: StatusRejected, Reason: ReasonAlreadyRedeemed, Message: out.Message}
		}
		slog.Warn("Unusable code in pool",
			slog.String("pool", sess.Pool),
			slog.String("code", code),
			slog.Int("outcome", out.Code))
		w.poison(ctx, sess.Pool, code)
		return &Result{Status: StatusSystemError, Reason: ReasonCodeUnusable, Code: code, Message: out.Message}

	case oracle.IsRetryable(out.Code):
		return w.issueChallenge(ctx, sess, ReasonRetryChallenge)

	case out.Code == oracle.OutcomeBadPlayerID:
		w.sessions.End(sess.AccountID)
		return &Result{Status: StatusRejected, Reason: ReasonInvalidIdentity, Message: out.Message}

	default:
		w.sessions.End(sess.AccountID)
		if !pooled {
			// Unknown outcomes for shared codes are downgraded to the quiet
			// rejection, matching the already-claimed path.
			return &Result{Status: StatusRejected, Reason: ReasonAlreadyRedeemed, Message: out.Message}
		}
		slog.Error("Unmapped oracle outcome",
			slog.Int("outcome", out.Code),
			slog.String("code", code),
			slog.String("message", out.Message))
		return &Result{Status: StatusSystemError, Reason: ReasonUnexpectedOutcome, Code: code, Message: out.Message}
	}
}

// poison marks a pool code used so it is never dispensed again. The draw
// already marked it; this is the explicit guard for any path where it was
// not, and a no-op otherwise.
func (w *Workflow) poison(ctx context.Context, pool, code string) {
	if err := w.codes.MarkUsed(ctx, pool, code); err != nil {
		slog.Error("Failed to poison code",
			slog.String("type", "db"),
			slog.String("pool", pool),
			slog.String("code", code),
			slog.Any("error", err))
	}
}
