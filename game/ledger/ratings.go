// Package ledger keeps the books of a simulation: vehicle satisfaction
// ratings, parking fees and the narration log. The in-memory ledgers are
// the collaborators the traffic systems write to; SQLiteArchive optionally
// keeps finalized records across runs.
package ledger

import "time"

// FinalRating is a vehicle score that will never change again
type FinalRating struct {
	Session   string    `json:"session,omitempty"`
	VehicleID string    `json:"vehicle_id"`
	Score     float64   `json:"score"`
	Initial   float64   `json:"initial"`
	At        time.Time `json:"at"`
}

// RatingObserver is told about every finalized rating
type RatingObserver interface {
	RecordRating(r FinalRating)
}

// RatingSummary aggregates finalized ratings
type RatingSummary struct {
	Active    int     `json:"active"`
	Finalized int     `json:"finalized"`
	Average   float64 `json:"average"`
	Lowest    float64 `json:"lowest"`
	Highest   float64 `json:"highest"`
}

type activeRating struct {
	initial float64
	score   float64
}

const recentLimit = 200

// Ratings is the in-memory rating ledger. It is not safe for concurrent
// use; the owning simulation serializes access.
type Ratings struct {
	session  string
	active   map[string]*activeRating
	recent   []FinalRating
	count    int
	sum      float64
	lowest   float64
	highest  float64
	observer RatingObserver
	now      func() time.Time
}

// NewRatings creates a rating ledger labelled with a session id
func NewRatings(session string) *Ratings {
	return &Ratings{
		session: session,
		active:  make(map[string]*activeRating),
		now:     time.Now,
	}
}

// SetObserver installs the sink for finalized ratings
func (r *Ratings) SetObserver(o RatingObserver) {
	r.observer = o
}

// Register opens a rating. Registering an id twice keeps the first entry.
func (r *Ratings) Register(id string, initial float64) {
	if _, ok := r.active[id]; ok {
		return
	}
	r.active[id] = &activeRating{initial: initial, score: initial}
}

// Adjust changes an active rating; finalized and unknown ids are ignored
func (r *Ratings) Adjust(id string, delta float64) {
	if a, ok := r.active[id]; ok {
		a.score += delta
	}
}

// Finalize closes a rating
func (r *Ratings) Finalize(id string) {
	a, ok := r.active[id]
	if !ok {
		return
	}
	delete(r.active, id)

	final := FinalRating{
		Session:   r.session,
		VehicleID: id,
		Score:     a.score,
		Initial:   a.initial,
		At:        r.now(),
	}
	if r.count == 0 || final.Score < r.lowest {
		r.lowest = final.Score
	}
	if r.count == 0 || final.Score > r.highest {
		r.highest = final.Score
	}
	r.count++
	r.sum += final.Score

	r.recent = append(r.recent, final)
	if len(r.recent) > recentLimit {
		r.recent = r.recent[len(r.recent)-recentLimit:]
	}
	if r.observer != nil {
		r.observer.RecordRating(final)
	}
}

// Score returns the current score of an active rating
func (r *Ratings) Score(id string) (float64, bool) {
	a, ok := r.active[id]
	if !ok {
		return 0, false
	}
	return a.score, true
}

// Recent returns the latest finalized ratings, oldest first
func (r *Ratings) Recent() []FinalRating {
	out := make([]FinalRating, len(r.recent))
	copy(out, r.recent)
	return out
}

// Summary aggregates everything finalized so far
func (r *Ratings) Summary() RatingSummary {
	s := RatingSummary{
		Active:    len(r.active),
		Finalized: r.count,
		Lowest:    r.lowest,
		Highest:   r.highest,
	}
	if r.count > 0 {
		s.Average = r.sum / float64(r.count)
	}
	return s
}
