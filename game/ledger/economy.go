package ledger

import (
	"math"
	"time"

	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/traffic"
)

// Clock reports simulated time
type Clock interface {
	ElapsedMs() float64
}

// Collection is one collected parking fee
type Collection struct {
	Session   string           `json:"session,omitempty"`
	VehicleID string           `json:"vehicle_id"`
	Spot      grid.Position    `json:"spot"`
	Payment   grid.PaymentKind `json:"payment"`
	Amount    float64          `json:"amount"`
	ParkedMs  float64          `json:"parked_ms"`
	At        time.Time        `json:"at"`
}

// FeeObserver is told about every collected fee
type FeeObserver interface {
	RecordFee(c Collection)
}

type openFee struct {
	terms     traffic.FeeTerms
	startedMs float64
}

// Economy times and collects parking fees. A fee is the spot price per
// started billing period, or the flat price when the period is zero.
type Economy struct {
	session  string
	clock    Clock
	periodMs float64
	open     map[string]openFee
	revenue  float64
	recent   []Collection
	observer FeeObserver
	now      func() time.Time
}

// NewEconomy creates a fee ledger
func NewEconomy(session string, clock Clock, billingPeriodMs float64) *Economy {
	if billingPeriodMs < 0 {
		billingPeriodMs = 0
	}
	return &Economy{
		session:  session,
		clock:    clock,
		periodMs: billingPeriodMs,
		open:     make(map[string]openFee),
		now:      time.Now,
	}
}

// SetObserver installs the sink for collected fees
func (e *Economy) SetObserver(o FeeObserver) {
	e.observer = o
}

// StartFee opens a fee for a parked vehicle. Starting again restarts it.
func (e *Economy) StartFee(id string, terms traffic.FeeTerms) {
	e.open[id] = openFee{terms: terms, startedMs: e.clock.ElapsedMs()}
}

// CollectFee closes the open fee of id and returns its amount. Without an
// open fee it returns false, so a second collection never charges twice.
func (e *Economy) CollectFee(id string) (float64, bool) {
	fee, ok := e.open[id]
	if !ok {
		return 0, false
	}
	delete(e.open, id)

	parked := e.clock.ElapsedMs() - fee.startedMs
	amount := fee.terms.Price
	if e.periodMs > 0 {
		periods := math.Max(1, math.Ceil(parked/e.periodMs))
		amount = fee.terms.Price * periods
	}

	c := Collection{
		Session:   e.session,
		VehicleID: id,
		Spot:      fee.terms.Spot,
		Payment:   fee.terms.Payment,
		Amount:    amount,
		ParkedMs:  parked,
		At:        e.now(),
	}
	e.revenue += amount
	e.recent = append(e.recent, c)
	if len(e.recent) > recentLimit {
		e.recent = e.recent[len(e.recent)-recentLimit:]
	}
	if e.observer != nil {
		e.observer.RecordFee(c)
	}
	return amount, true
}

// DiscardFee drops an open fee without charging it
func (e *Economy) DiscardFee(id string) {
	delete(e.open, id)
}

// Revenue returns the total collected
func (e *Economy) Revenue() float64 {
	return e.revenue
}

// Open returns the number of fees still running
func (e *Economy) Open() int {
	return len(e.open)
}

// Recent returns the latest collections, oldest first
func (e *Economy) Recent() []Collection {
	out := make([]Collection, len(e.recent))
	copy(out, e.recent)
	return out
}
