package claim

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangege/redeembot/redeembot/database/models"
	"github.com/sangege/redeembot/redeembot/database/repositories"
	"github.com/sangege/redeembot/redeembot/oracle"
)

type fakeCodes struct {
	queue    []string
	drawErr  error
	draws    int
	poisoned []string
}

func (f *fakeCodes) BulkInsert(context.Context, string, []string) (int, error) { return 0, nil }

func (f *fakeCodes) DrawUnused(_ context.Context, pool string) (*models.Code, error) {
	f.draws++
	if f.drawErr != nil {
		return nil, f.drawErr
	}
	if len(f.queue) == 0 {
		return nil, repositories.ErrNoCodesLeft
	}
	value := f.queue[0]
	f.queue = f.queue[1:]
	return &models.Code{Pool: pool, Value: value, Used: true}, nil
}

func (f *fakeCodes) MarkUsed(_ context.Context, _, value string) error {
	f.poisoned = append(f.poisoned, value)
	return nil
}

func (f *fakeCodes) ResetPool(context.Context, string) error { return nil }

func (f *fakeCodes) Stats(context.Context, string) (int, int, error) { return 0, 0, nil }

type fakeClaims struct {
	last      *models.Claim
	lastErr   error
	recorded  []*models.Claim
	recordErr error
}

func (f *fakeClaims) Record(_ context.Context, accountID, playerID, code string, at time.Time) (*models.Claim, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	c := &models.Claim{AccountID: accountID, PlayerID: playerID, Code: code, ClaimedAt: at}
	f.recorded = append(f.recorded, c)
	return c, nil
}

func (f *fakeClaims) LastClaim(context.Context, string, string) (*models.Claim, error) {
	return f.last, f.lastErr
}

func (f *fakeClaims) LastPlayerID(context.Context, string) (string, error) { return "", nil }

func (f *fakeClaims) HistoryByAccount(context.Context, string) ([]*models.Claim, error) {
	return nil, nil
}

func (f *fakeClaims) HistoryByPlayer(context.Context, string) ([]*models.Claim, error) {
	return nil, nil
}

func (f *fakeClaims) OldestClaimMonth(context.Context) (int, time.Month, bool, error) {
	return 0, 0, false, nil
}

func (f *fakeClaims) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type redeemCall struct {
	playerID, code, challengeID, answer string
}

type fakeOracle struct {
	challengeErr error
	issued       int

	outcomes  []*oracle.Outcome
	redeemErr error
	calls     []redeemCall
}

func (f *fakeOracle) IssueChallenge(context.Context) (*oracle.Challenge, error) {
	if f.challengeErr != nil {
		return nil, f.challengeErr
	}
	f.issued++
	return &oracle.Challenge{
		ID:       fmt.Sprintf("ch-%d", f.issued),
		Image:    []byte{0x89, 0x50},
		IssuedAt: time.Now(),
	}, nil
}

func (f *fakeOracle) Redeem(_ context.Context, playerID, code, challengeID, answer string) (*oracle.Outcome, error) {
	f.calls = append(f.calls, redeemCall{playerID, code, challengeID, answer})
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	out := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return out, nil
}

var testNow = time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)

func newTestWorkflow(codes *fakeCodes, claims *fakeClaims, oc *fakeOracle) *Workflow {
	w := NewWorkflow(codes, claims, oc, NewSessionStore(10*time.Minute))
	w.now = func() time.Time { return testNow }
	return w
}

func TestWorkflowPooledClaimSucceeds(t *testing.T) {
	codes := &fakeCodes{queue: []string{"CODE1"}}
	claims := &fakeClaims{}
	oc := &fakeOracle{outcomes: []*oracle.Outcome{{Code: oracle.OutcomeSuccess, Message: "ok"}}}
	w := newTestWorkflow(codes, claims, oc)

	w.Begin("acc1", false, "")

	res := w.SubmitIdentity(context.Background(), "acc1", "5551234")
	require.Equal(t, StatusAwaitingAnswer, res.Status)
	require.NotNil(t, res.Challenge)

	res = w.SubmitAnswer(context.Background(), "acc1", "1234")
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "CODE1", res.Code)

	require.Len(t, claims.recorded, 1)
	assert.Equal(t, "acc1", claims.recorded[0].AccountID)
	assert.Equal(t, "5551234", claims.recorded[0].PlayerID)
	assert.Equal(t, "CODE1", claims.recorded[0].Code)

	require.Len(t, oc.calls, 1)
	assert.Equal(t, redeemCall{"5551234", "CODE1", "ch-1", "1234"}, oc.calls[0])

	_, ok := w.Sessions().Get("acc1")
	assert.False(t, ok, "session should be gone after a terminal outcome")
}

func TestWorkflowRejectsInvalidPlayerID(t *testing.T) {
	w := newTestWorkflow(&fakeCodes{}, &fakeClaims{}, &fakeOracle{})
	w.Begin("acc1", false, "")

	res := w.SubmitIdentity(context.Background(), "acc1", "not-a-number")
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonInvalidIdentity, res.Reason)

	_, ok := w.Sessions().Get("acc1")
	assert.False(t, ok)
}

func TestWorkflowRejectsWithoutSession(t *testing.T) {
	w := newTestWorkflow(&fakeCodes{}, &fakeClaims{}, &fakeOracle{})

	res := w.SubmitIdentity(context.Background(), "ghost", "123")
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonSessionExpired, res.Reason)

	res = w.SubmitAnswer(context.Background(), "ghost", "1234")
	assert.Equal(t, ReasonSessionExpired, res.Reason)
}

func TestWorkflowCooldownBlocksPooledClaim(t *testing.T) {
	claims := &fakeClaims{last: &models.Claim{
		ClaimedAt: time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC),
	}}
	oc := &fakeOracle{}
	w := newTestWorkflow(&fakeCodes{}, claims, oc)
	w.Begin("acc1", false, "")

	res := w.SubmitIdentity(context.Background(), "acc1", "123")
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonCooldownActive, res.Reason)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), res.NextEligible)
	assert.Zero(t, oc.issued, "no challenge should go out for a blocked claim")
}

func TestWorkflowTargetedClaimBypassesCooldown(t *testing.T) {
	claims := &fakeClaims{last: &models.Claim{
		ClaimedAt: time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC),
	}}
	codes := &fakeCodes{}
	oc := &fakeOracle{outcomes: []*oracle.Outcome{{Code: oracle.OutcomeSuccess}}}
	w := newTestWorkflow(codes, claims, oc)
	w.Begin("acc1", false, "EVENTCODE")

	res := w.SubmitIdentity(context.Background(), "acc1", "123")
	require.Equal(t, StatusAwaitingAnswer, res.Status)

	res = w.SubmitAnswer(context.Background(), "acc1", "1234")
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "EVENTCODE", res.Code)
	assert.Zero(t, codes.draws, "targeted claims never touch the pools")
}

func TestWorkflowMalformedAnswerReissuesChallenge(t *testing.T) {
	oc := &fakeOracle{}
	w := newTestWorkflow(&fakeCodes{}, &fakeClaims{}, oc)
	sess := w.Begin("acc1", false, "TARGET")
	sess.PlayerID = "123"

	first := w.issueChallenge(context.Background(), sess, ReasonNone)
	require.Equal(t, StatusAwaitingAnswer, first.Status)

	res := w.SubmitAnswer(context.Background(), "acc1", "12")
	assert.Equal(t, StatusAwaitingAnswer, res.Status)
	assert.Equal(t, ReasonMalformedAnswer, res.Reason)
	require.NotNil(t, res.Challenge)
	assert.NotEqual(t, first.Challenge.ID, res.Challenge.ID)
	assert.Empty(t, oc.calls, "a malformed answer must not reach the oracle")

	got, ok := w.Sessions().Get("acc1")
	require.True(t, ok, "session survives a malformed answer")
	assert.Equal(t, res.Challenge.ID, got.ChallengeID)
}

func TestWorkflowPoolExhausted(t *testing.T) {
	w := newTestWorkflow(&fakeCodes{}, &fakeClaims{}, &fakeOracle{})
	w.Begin("acc1", false, "")

	res := w.SubmitIdentity(context.Background(), "acc1", "123")
	require.Equal(t, StatusAwaitingAnswer, res.Status)

	res = w.SubmitAnswer(context.Background(), "acc1", "1234")
	assert.Equal(t, StatusSystemError, res.Status)
	assert.Equal(t, ReasonPoolExhausted, res.Reason)
}

func TestWorkflowOracleUnreachableLeavesNoRecord(t *testing.T) {
	claims := &fakeClaims{}
	oc := &fakeOracle{redeemErr: oracle.ErrUnavailable}
	w := newTestWorkflow(&fakeCodes{queue: []string{"CODE1"}}, claims, oc)
	w.Begin("acc1", false, "")

	w.SubmitIdentity(context.Background(), "acc1", "123")
	res := w.SubmitAnswer(context.Background(), "acc1", "1234")

	assert.Equal(t, StatusSystemError, res.Status)
	assert.Equal(t, ReasonOracleUnreachable, res.Reason)
	assert.Empty(t, claims.recorded)
}

func TestWorkflowRetryReusesDrawnCode(t *testing.T) {
	codes := &fakeCodes{queue: []string{"CODE1", "CODE2"}}
	oc := &fakeOracle{outcomes: []*oracle.Outcome{
		{Code: oracle.OutcomeBadChallenge},
		{Code: oracle.OutcomeSuccess},
	}}
	w := newTestWorkflow(codes, &fakeClaims{}, oc)
	w.Begin("acc1", false, "")

	w.SubmitIdentity(context.Background(), "acc1", "123")

	res := w.SubmitAnswer(context.Background(), "acc1", "1111")
	require.Equal(t, StatusAwaitingAnswer, res.Status)
	assert.Equal(t, ReasonRetryChallenge, res.Reason)

	res = w.SubmitAnswer(context.Background(), "acc1", "2222")
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "CODE1", res.Code)

	assert.Equal(t, 1, codes.draws, "the held code is redeemed, not redrawn")
	require.Len(t, oc.calls, 2)
	assert.Equal(t, "CODE1", oc.calls[1].code)
	assert.Equal(t, "ch-2", oc.calls[1].challengeID)
}

func TestWorkflowOutcomeMapping(t *testing.T) {
	tests := []struct {
		name       string
		targetCode string
		outcome    int
		wantStatus Status
		wantReason Reason
		wantPoison bool
	}{
		{
			name:       "pooled already claimed is an integrity failure",
			outcome:    oracle.OutcomeAlreadyClaimed,
			wantStatus: StatusSystemError,
			wantReason: ReasonCodeIntegrity,
			wantPoison: true,
		},
		{
			name:       "targeted already claimed is a quiet rejection",
			targetCode: "EVENTCODE",
			outcome:    oracle.OutcomeAlreadyClaimed,
			wantStatus: StatusRejected,
			wantReason: ReasonAlreadyRedeemed,
		},
		{
			name:       "pooled expired code is poisoned",
			outcome:    oracle.OutcomeCodeExpired,
			wantStatus: StatusSystemError,
			wantReason: ReasonCodeUnusable,
			wantPoison: true,
		},
		{
			name:       "targeted expired code is a quiet rejection",
			targetCode: "EVENTCODE",
			outcome:    oracle.OutcomeCodeExpired,
			wantStatus: StatusRejected,
			wantReason: ReasonAlreadyRedeemed,
		},
		{
			name:       "bad player id rejects the identity",
			targetCode: "EVENTCODE",
			outcome:    oracle.OutcomeBadPlayerID,
			wantStatus: StatusRejected,
			wantReason: ReasonInvalidIdentity,
		},
		{
			name:       "unknown outcome on a pooled code",
			outcome:    99999,
			wantStatus: StatusSystemError,
			wantReason: ReasonUnexpectedOutcome,
		},
		{
			name:       "unknown outcome on a targeted code",
			targetCode: "EVENTCODE",
			outcome:    99999,
			wantStatus: StatusRejected,
			wantReason: ReasonAlreadyRedeemed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := &fakeCodes{queue: []string{"CODE1"}}
			oc := &fakeOracle{outcomes: []*oracle.Outcome{{Code: tt.outcome}}}
			w := newTestWorkflow(codes, &fakeClaims{}, oc)
			w.Begin("acc1", false, tt.targetCode)

			w.SubmitIdentity(context.Background(), "acc1", "123")
			res := w.SubmitAnswer(context.Background(), "acc1", "1234")

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantReason, res.Reason)
			if tt.wantPoison {
				assert.Equal(t, []string{"CODE1"}, codes.poisoned)
			} else {
				assert.Empty(t, codes.poisoned)
			}

			_, ok := w.Sessions().Get("acc1")
			assert.False(t, ok)
		})
	}
}

func TestWorkflowLedgerFailureStillSucceeds(t *testing.T) {
	claims := &fakeClaims{recordErr: errors.New("disk full")}
	oc := &fakeOracle{outcomes: []*oracle.Outcome{{Code: oracle.OutcomeSuccess}}}
	w := newTestWorkflow(&fakeCodes{queue: []string{"CODE1"}}, claims, oc)
	w.Begin("acc1", false, "")

	w.SubmitIdentity(context.Background(), "acc1", "123")
	res := w.SubmitAnswer(context.Background(), "acc1", "1234")

	// The oracle already redeemed the code; the caller must not be told the
	// claim failed because of a local write.
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "CODE1", res.Code)
}

func TestWorkflowChallengeUnavailable(t *testing.T) {
	oc := &fakeOracle{challengeErr: oracle.ErrUnavailable}
	w := newTestWorkflow(&fakeCodes{}, &fakeClaims{}, oc)
	w.Begin("acc1", false, "TARGET")

	res := w.SubmitIdentity(context.Background(), "acc1", "123")
	assert.Equal(t, StatusSystemError, res.Status)
	assert.Equal(t, ReasonChallengeUnavailable, res.Reason)
}
