// Package risk implements the fail-closed order validator applied before
// an order enters the pending buffer. The gate never reads or mutates
// balances — funds sufficiency is enforced exclusively by the ledger
// freeze escrow.Registry.Mint performs at mint time — which guarantees "no order without a reservation" holds
// regardless of what the risk gate does or doesn't check.
package risk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/openibank/openmatch/internal/types"
)

// ErrInvalidOrder and ErrRateLimited are the two rejection kinds the
// baseline rules can produce; plugin rules may define their own as long
// as they only tighten, never weaken, validation.
var (
	ErrInvalidOrder = errors.New("risk: invalid order")
	ErrRateLimited  = errors.New("risk: rate limited")
)

// Context carries the per-epoch state a rule needs to decide, without
// giving it access to balances.
type Context struct {
	Epoch           uint64
	OrdersThisEpoch int // count already admitted for order.User in this epoch
}

// Rule validates a single order against ctx. Composable and stacked in
// configured order; a plugin rule can refuse on top of the baseline but
// can never relax it (see Gate.AddRule).
type Rule interface {
	Validate(order types.Order, ctx Context) error
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(order types.Order, ctx Context) error

func (f RuleFunc) Validate(order types.Order, ctx Context) error { return f(order, ctx) }

// Config holds the baseline limits every Gate enforces.
type Config struct {
	MaxOrderSize         types.Amount
	MaxOrdersPerUserEpoch int
}

// Gate is the ordered sequence of rules applied to every order. Baseline
// rules are installed at construction; AddRule only ever appends.
type Gate struct {
	mu    sync.Mutex
	rules []Rule
}

// New builds a Gate with the baseline rules from spec.md §4.3: qty>0,
// Limit price>0, qty<=max, and per-user rate limiting.
func New(cfg Config) *Gate {
	g := &Gate{}
	g.rules = append(g.rules,
		RuleFunc(ruleQtyPositive),
		RuleFunc(ruleLimitPricePositive),
		RuleFunc(ruleMarketOrderNeedsBound),
		ruleMaxOrderSize{max: cfg.MaxOrderSize},
		ruleRateLimit{limit: cfg.MaxOrdersPerUserEpoch},
	)
	return g
}

// AddRule appends a plugin rule to the end of the chain. Plugins may only
// tighten validation: since every existing rule still runs first and a
// rejection from any rule is final, a plugin can never undo a baseline
// rejection, only add new ones.
func (g *Gate) AddRule(r Rule) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, r)
}

// Validate runs order through every installed rule in order, stopping at
// the first rejection.
func (g *Gate) Validate(order types.Order, ctx Context) error {
	g.mu.Lock()
	rules := make([]Rule, len(g.rules))
	copy(rules, g.rules)
	g.mu.Unlock()

	for _, r := range rules {
		if err := r.Validate(order, ctx); err != nil {
			return err
		}
	}
	return nil
}

func ruleQtyPositive(order types.Order, _ Context) error {
	if !order.Qty.IsPositive() {
		return fmt.Errorf("%w: qty must be positive", ErrInvalidOrder)
	}
	return nil
}

func ruleLimitPricePositive(order types.Order, _ Context) error {
	if order.Type == types.OrderTypeLimit && !order.Price.IsPositive() {
		return fmt.Errorf("%w: limit order price must be positive", ErrInvalidOrder)
	}
	return nil
}

// ErrMissingPriceBound is returned when a market order omits the caller
//-supplied ceiling/floor; the core never infers one.
var ErrMissingPriceBound = fmt.Errorf("%w: market order missing price bound", ErrInvalidOrder)

func ruleMarketOrderNeedsBound(order types.Order, _ Context) error {
	if order.Type == types.OrderTypeMarket && !order.Bound.Set {
		return ErrMissingPriceBound
	}
	return nil
}

type ruleMaxOrderSize struct{ max types.Amount }

func (r ruleMaxOrderSize) Validate(order types.Order, _ Context) error {
	if r.max.IsPositive() && order.Qty.GreaterThan(r.max) {
		return fmt.Errorf("%w: qty exceeds max order size", ErrInvalidOrder)
	}
	return nil
}

type ruleRateLimit struct{ limit int }

func (r ruleRateLimit) Validate(_ types.Order, ctx Context) error {
	if r.limit > 0 && ctx.OrdersThisEpoch >= r.limit {
		return fmt.Errorf("%w: per-user order limit reached for this epoch", ErrRateLimited)
	}
	return nil
}
