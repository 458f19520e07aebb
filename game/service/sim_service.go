package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/traffic"
)

// SimService defines all simulation operations
type SimService interface {
	// Session Management
	CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation Control
	Step(ctx context.Context, sessionID string, opts StepOptions) (*StepResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.SimState, error)
	AddSpawner(ctx context.Context, sessionID string, origin, destination grid.Position) (*traffic.Spawner, error)
	RemoveSpawner(ctx context.Context, sessionID, spawnerID string) error

	// Queries
	GetState(ctx context.Context, sessionID string) (*engine.SimState, error)
	FindPath(ctx context.Context, sessionID string, from, to grid.Position, class string) (*PathResult, error)
	GetMessages(ctx context.Context, sessionID string, since int) ([]ledger.Message, error)
	GetRatings(ctx context.Context, sessionID string) (*RatingsResult, error)

	// Scenarios
	ListScenarios(ctx context.Context) ([]*ScenarioInfo, error)
	LoadScenario(ctx context.Context, scenarioID string) (*engine.ScenarioConfig, error)
	SaveScenario(ctx context.Context, scenarioID string, cfg *engine.ScenarioConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, scenarioID string, cfg *engine.ScenarioConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles scenario loading
type ConfigManager interface {
	LoadScenario(name string) (*engine.ScenarioConfig, error)
	ListScenarios() ([]*ScenarioInfo, error)
	GetDefault() (string, *engine.ScenarioConfig)
	SaveScenario(name string, cfg *engine.ScenarioConfig) error
}

// ArchiveReader reads totals kept across runs
type ArchiveReader interface {
	Totals(ctx context.Context, session string) (ledger.ArchiveTotals, error)
}

// Session represents an active simulation session. The simulation is not
// safe for concurrent use; go through Do.
type Session struct {
	ID             string
	ScenarioID     string
	Sim            *engine.Simulation
	Config         *engine.ScenarioConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Closers run when the session is deleted
	Closers []func() error

	mu sync.Mutex
}

// Do runs fn with exclusive access to the simulation
func (s *Session) Do(fn func(sim *engine.Simulation) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.Sim)
}

// Close runs the session's closers and returns the first error
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, c := range s.Closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.Closers = nil
	return first
}
