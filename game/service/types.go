package service

import (
	"time"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/pathfind"
)

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string           `json:"id"`
	ScenarioID     string           `json:"scenario_id"`
	ScenarioName   string           `json:"scenario_name"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	State          *engine.SimState `json:"state"`
}

// StepOptions controls one step call. Zero values mean one tick of the
// tuned length.
type StepOptions struct {
	Ticks     int     `json:"ticks,omitempty"`
	DeltaMs   float64 `json:"delta_ms,omitempty"`
	Reset     bool    `json:"reset,omitempty"`
	TimeScale float64 `json:"time_scale,omitempty"`
	Paused    *bool   `json:"paused,omitempty"`
}

// StepResult contains the result of a step call
type StepResult struct {
	TicksExecuted  int                `json:"ticks_executed"`
	RequestedTicks int                `json:"requested_ticks"`
	Truncated      bool               `json:"truncated,omitempty"`
	Limit          int                `json:"limit,omitempty"`
	Summary        engine.TickSummary `json:"summary"`
	Messages       []ledger.Message   `json:"messages"`
	State          *engine.SimState   `json:"state"`
}

// PathResult answers a path query
type PathResult struct {
	From   grid.Position   `json:"from"`
	To     grid.Position   `json:"to"`
	Class  pathfind.Class  `json:"class"`
	Found  bool            `json:"found"`
	Length int             `json:"length"`
	Path   []grid.Position `json:"path"`
}

// RatingsResult reports satisfaction and revenue of a session
type RatingsResult struct {
	Summary ledger.RatingSummary  `json:"summary"`
	Recent  []ledger.FinalRating  `json:"recent"`
	Fees    []ledger.Collection   `json:"fees"`
	Revenue float64               `json:"revenue"`
	Archive *ledger.ArchiveTotals `json:"archive,omitempty"`
}

// ScenarioInfo provides information about a scenario file
type ScenarioInfo struct {
	Filename    string `json:"filename"`
	ScenarioID  string `json:"scenario_id"` // The identifier to use for session creation
	Name        string `json:"name"`        // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Spots       int    `json:"spots"`
	Spawners    int    `json:"spawners"`
}
