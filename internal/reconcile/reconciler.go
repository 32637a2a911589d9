// Package reconcile applies decoded chain events to the projection
// stores. Application is idempotent: the poll loop and the webhook
// receiver both feed the same reconciler, and an event delivered twice
// changes state exactly once.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"stackspad/internal/curve"
	"stackspad/internal/domain"
	"stackspad/internal/observability"
	"stackspad/internal/storage"
)

// Outcome reports what applying an event did.
type Outcome string

// Apply outcomes.
const (
	OutcomeApplied   Outcome = "applied"   // state changed
	OutcomeDuplicate Outcome = "duplicate" // seen before, no change
	OutcomeRejected  Outcome = "rejected"  // refused, e.g. trade after graduation
)

// maxCASRetries bounds conflict retries on the curve-state write.
const maxCASRetries = 3

// Reconciler folds domain events into the token, trade and activity
// projections.
type Reconciler struct {
	tokens   storage.TokenStore
	trades   storage.TradeStore
	activity storage.ActivityStore
	locks    *keyedMutex
	logger   *log.Logger
	now      func() time.Time
}

// Options contains configuration for creating a Reconciler.
type Options struct {
	TokenStore    storage.TokenStore
	TradeStore    storage.TradeStore
	ActivityStore storage.ActivityStore
	Logger        *log.Logger
	Now           func() time.Time // defaults to time.Now
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		tokens:   opts.TokenStore,
		trades:   opts.TradeStore,
		activity: opts.ActivityStore,
		locks:    newKeyedMutex(),
		logger:   logger,
		now:      now,
	}
}

// Apply folds one event into the projections. Duplicate deliveries of
// the same transaction return OutcomeDuplicate without side effects.
// Errors mean the event was not applied and a retry is safe.
func (r *Reconciler) Apply(ctx context.Context, ev *domain.Event) (Outcome, error) {
	if ev == nil {
		return OutcomeRejected, errors.New("nil event")
	}

	var (
		outcome Outcome
		err     error
	)
	switch ev.Type {
	case domain.EventTokenRegistered:
		outcome, err = r.applyRegistered(ctx, ev)
	case domain.EventBought, domain.EventSold:
		outcome, err = r.applyTrade(ctx, ev)
	case domain.EventGraduated:
		outcome, err = r.applyGraduation(ctx, ev)
	default:
		return OutcomeRejected, fmt.Errorf("unknown event type %q", ev.Type)
	}

	if err == nil {
		observability.RecordReconcileOutcome(string(ev.Type), string(outcome))
	}
	return outcome, err
}

func (r *Reconciler) applyRegistered(ctx context.Context, ev *domain.Event) (Outcome, error) {
	reg := ev.Registered
	if reg == nil {
		return OutcomeRejected, errors.New("registration event without payload")
	}

	unlock := r.locks.Lock(reg.Contract)
	defer unlock()

	now := r.now().UTC()
	createdAt := now
	if ev.BlockTime > 0 {
		createdAt = time.Unix(ev.BlockTime, 0).UTC()
	}

	token := &domain.Token{
		Contract:     reg.Contract,
		Name:         reg.Name,
		Symbol:       reg.Symbol,
		Creator:      ev.Sender,
		ImageURI:     reg.ImageURI,
		Description:  reg.Description,
		CurrentPrice: curve.Price(0),
		CreatedAt:    createdAt,
		UpdatedAt:    now,
	}

	if err := r.tokens.Insert(ctx, token); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return OutcomeDuplicate, nil
		}
		return OutcomeRejected, fmt.Errorf("insert token %s: %w", reg.Symbol, err)
	}

	r.recordActivity(ctx, domain.ActivityTokenCreated, ev, reg.Contract, map[string]interface{}{
		"symbol": reg.Symbol,
		"name":   reg.Name,
	})
	r.logger.Printf("registered token %s (%s)", reg.Symbol, reg.Contract)
	return OutcomeApplied, nil
}

func (r *Reconciler) applyTrade(ctx context.Context, ev *domain.Event) (Outcome, error) {
	tr := ev.Trade
	if tr == nil {
		return OutcomeRejected, errors.New("trade event without payload")
	}

	unlock := r.locks.Lock(tr.Token)
	defer unlock()

	// The tx id gate: a trade already in the ledger was fully applied,
	// including its curve-state update, so a second delivery is a no-op.
	if _, err := r.trades.GetByTxID(ctx, ev.TxID); err == nil {
		return OutcomeDuplicate, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return OutcomeRejected, fmt.Errorf("check trade %s: %w", ev.TxID, err)
	}

	token, err := r.tokens.GetByContract(ctx, tr.Token)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("load token %s: %w", tr.Token, err)
	}

	if token.IsGraduated {
		r.recordActivity(ctx, domain.ActivityTradeRejected, ev, tr.Token, map[string]interface{}{
			"reason": "token graduated",
		})
		r.logger.Printf("rejected trade %s: token %s is graduated", ev.TxID, token.Symbol)
		return OutcomeRejected, nil
	}

	next, trade, err := r.buildTrade(ev, token)
	if err != nil {
		return OutcomeRejected, err
	}

	// The trade row and the curve write land as one atomic store
	// operation, so a failure here leaves nothing behind and a retry of
	// the delivery starts clean. Conflicts mean another replica moved
	// the curve between our read and write; re-derive the trade from
	// the fresh row and try again.
	expected := token.TokensSold
	for attempt := 0; ; attempt++ {
		err = r.trades.RecordTrade(ctx, trade, expected, next)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Another process won the race for this tx id.
			return OutcomeDuplicate, nil
		}
		if !errors.Is(err, storage.ErrConflict) || attempt >= maxCASRetries {
			return OutcomeRejected, fmt.Errorf("record trade %s on %s: %w", ev.TxID, token.Symbol, err)
		}
		observability.RecordCurveStateRetry()

		fresh, rerr := r.tokens.GetByContract(ctx, token.Contract)
		if rerr != nil {
			return OutcomeRejected, fmt.Errorf("reload token %s: %w", tr.Token, rerr)
		}
		if fresh.IsGraduated {
			return OutcomeRejected, fmt.Errorf("record trade %s on %s: %w", ev.TxID, token.Symbol, storage.ErrConflict)
		}
		next, trade, err = r.buildTrade(ev, fresh)
		if err != nil {
			return OutcomeRejected, err
		}
		expected = fresh.TokensSold
	}

	activityType := domain.ActivityBuy
	if trade.Type == domain.TradeTypeSell {
		activityType = domain.ActivitySell
	}
	r.recordActivity(ctx, activityType, ev, tr.Token, map[string]interface{}{
		"stx_amount":   trade.StxAmount,
		"token_amount": trade.TokenAmount,
		"tokens_sold":  next.TokensSold,
	})
	r.logger.Printf("applied %s %s on %s: stx=%d tokens=%d sold=%d",
		trade.Type, ev.TxID, token.Symbol, trade.StxAmount, trade.TokenAmount, next.TokensSold)
	return OutcomeApplied, nil
}

// buildTrade derives the trade row and the post-trade curve state from
// the event and the current projection. Arithmetic mirrors the on-chain
// contract: integer only, floor division, amounts in base units.
func (r *Reconciler) buildTrade(ev *domain.Event, token *domain.Token) (domain.CurveState, *domain.Trade, error) {
	tr := ev.Trade
	trade := &domain.Trade{
		TxID:         ev.TxID,
		Token:        token.Contract,
		Trader:       ev.Sender,
		StxAmount:    tr.StxAmount,
		TokenAmount:  tr.TokenAmount,
		PriceAtTrade: curve.Price(token.TokensSold),
		BlockHeight:  ev.BlockHeight,
		ObservedAt:   r.now().UTC(),
	}

	switch ev.Type {
	case domain.EventBought:
		trade.Type = domain.TradeTypeBuy
	case domain.EventSold:
		trade.Type = domain.TradeTypeSell
		q := curve.QuoteSell(tr.TokenAmount, token.TokensSold)
		trade.PlatformFee = q.PlatformFee
		trade.CreatorFee = q.CreatorFee
	default:
		return domain.CurveState{}, nil, fmt.Errorf("not a trade event: %s", ev.Type)
	}

	next, err := advanceCurve(token, trade.Type, tr)
	if err != nil {
		return domain.CurveState{}, nil, err
	}
	return next, trade, nil
}

// advanceCurve computes the post-trade curve state from a token row.
func advanceCurve(token *domain.Token, typ domain.TradeType, tr *domain.TradeEvent) (domain.CurveState, error) {
	var next domain.CurveState
	switch typ {
	case domain.TradeTypeBuy:
		next.TokensSold = token.TokensSold + tr.TokenAmount
		next.Reserve = token.Reserve + tr.StxAmount
	case domain.TradeTypeSell:
		if tr.TokenAmount > token.TokensSold || tr.StxAmount > token.Reserve {
			return next, fmt.Errorf("sell exceeds projection for %s (sold=%d reserve=%d)",
				token.Symbol, token.TokensSold, token.Reserve)
		}
		next.TokensSold = token.TokensSold - tr.TokenAmount
		next.Reserve = token.Reserve - tr.StxAmount
	}
	next.CurrentPrice = curve.Price(next.TokensSold)
	next.MarketCap = curve.MarketCap(next.TokensSold)
	return next, nil
}

func (r *Reconciler) applyGraduation(ctx context.Context, ev *domain.Event) (Outcome, error) {
	grad := ev.Graduation
	if grad == nil {
		return OutcomeRejected, errors.New("graduation event without payload")
	}

	unlock := r.locks.Lock(grad.Token)
	defer unlock()

	at := r.now().UTC()
	if ev.BlockTime > 0 {
		at = time.Unix(ev.BlockTime, 0).UTC()
	}

	changed, err := r.tokens.MarkGraduated(ctx, grad.Token, at)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("mark graduated %s: %w", grad.Token, err)
	}
	if !changed {
		return OutcomeDuplicate, nil
	}

	observability.RecordGraduation()
	r.recordActivity(ctx, domain.ActivityGraduated, ev, grad.Token, nil)
	r.logger.Printf("token %s graduated at %s", grad.Token, at.Format(time.RFC3339))
	return OutcomeApplied, nil
}

// recordActivity appends to the audit timeline. Failures are logged and
// swallowed; the timeline is advisory and must not fail the event.
func (r *Reconciler) recordActivity(ctx context.Context, typ domain.ActivityType, ev *domain.Event, token string, details map[string]interface{}) {
	var detailsJSON string
	if details != nil {
		b, err := json.Marshal(details)
		if err == nil {
			detailsJSON = string(b)
		}
	}

	err := r.activity.Insert(ctx, &domain.Activity{
		ID:        uuid.NewString(),
		EventType: typ,
		TxID:      ev.TxID,
		Address:   ev.Sender,
		Token:     token,
		Details:   detailsJSON,
		CreatedAt: r.now().UTC(),
	})
	if err != nil {
		r.logger.Printf("record activity %s for %s: %v", typ, ev.TxID, err)
	}
}
