package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/traffic"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNoScenario     = errors.New("no scenario available")
)

// simServiceImpl implements the SimService interface
type simServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	archive  ArchiveReader
	mu       sync.RWMutex
}

// Option customizes the service
type Option func(*simServiceImpl)

// WithArchive adds totals kept across runs to rating reports
func WithArchive(a ArchiveReader) Option {
	return func(s *simServiceImpl) { s.archive = a }
}

// NewSimService creates a new simulation service instance
func NewSimService(sessions SessionManager, configs ConfigManager, opts ...Option) SimService {
	s := &simServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *simServiceImpl) info(sess *Session) *SessionInfo {
	info := &SessionInfo{
		ID:             sess.ID,
		ScenarioID:     sess.ScenarioID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
	}
	sess.Do(func(sim *engine.Simulation) error {
		info.State = sim.GetState()
		info.ScenarioName = sim.Config().Name
		return nil
	})
	return info
}

// session looks a session up and marks it as used
func (s *simServiceImpl) session(id string) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(id)
	return sess, nil
}

// CreateSession creates a new session from a scenario; empty means the default
func (s *simServiceImpl) CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg *engine.ScenarioConfig
	var err error
	if scenarioID != "" {
		cfg, err = s.configs.LoadScenario(scenarioID)
		if err != nil {
			available, listErr := s.configs.ListScenarios()
			if listErr == nil && len(available) > 0 {
				var ids []string
				for _, sc := range available {
					ids = append(ids, sc.ScenarioID)
				}
				return nil, fmt.Errorf("failed to load scenario '%s' (available: %v): %w", scenarioID, ids, err)
			}
			return nil, fmt.Errorf("failed to load scenario '%s': %w", scenarioID, err)
		}
	} else {
		scenarioID, cfg = s.configs.GetDefault()
		if cfg == nil {
			return nil, ErrNoScenario
		}
	}

	sess, err := s.sessions.Create("", scenarioID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *simServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *simServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *simServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Delete(sessionID)
}

// Step advances a session by opts.Ticks ticks, capped at engine.MaxStepTicks
func (s *simServiceImpl) Step(ctx context.Context, sessionID string, opts StepOptions) (*StepResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if opts.Ticks < 0 || opts.DeltaMs < 0 || opts.TimeScale < 0 {
		return nil, fmt.Errorf("%w: ticks, delta_ms and time_scale must not be negative", ErrInvalidRequest)
	}
	if opts.DeltaMs > engine.MaxStepDeltaMs {
		return nil, fmt.Errorf("%w: delta_ms must be at most %d", ErrInvalidRequest, engine.MaxStepDeltaMs)
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	requested := opts.Ticks
	if requested == 0 {
		requested = 1
	}
	result := &StepResult{RequestedTicks: requested}
	ticks := requested
	if ticks > engine.MaxStepTicks {
		ticks = engine.MaxStepTicks
		result.Truncated = true
		result.Limit = engine.MaxStepTicks
	}

	err = sess.Do(func(sim *engine.Simulation) error {
		if opts.Reset {
			if err := sim.Reset(); err != nil {
				return err
			}
		}
		if opts.TimeScale > 0 {
			if err := sim.SetTimeScale(opts.TimeScale); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
		}
		if opts.Paused != nil {
			sim.Pause(*opts.Paused)
		}

		delta := opts.DeltaMs
		if delta == 0 {
			delta = sim.Tuning().TickMs
		}
		before := sim.CurrentTick()
		seq := sim.LastMessageSeq()
		for i := 0; i < ticks; i++ {
			if err := ctx.Err(); err != nil {
				break
			}
			result.Summary = sim.Tick(delta)
		}
		result.TicksExecuted = sim.CurrentTick() - before
		result.Messages = sim.Messages(seq)
		result.State = sim.GetState()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reset rebuilds a session from its scenario
func (s *simServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.SimState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	var state *engine.SimState
	err = sess.Do(func(sim *engine.Simulation) error {
		if err := sim.Reset(); err != nil {
			return err
		}
		state = sim.GetState()
		return nil
	})
	return state, err
}

// AddSpawner registers a spawner on a running session
func (s *simServiceImpl) AddSpawner(ctx context.Context, sessionID string, origin, destination grid.Position) (*traffic.Spawner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	var sp traffic.Spawner
	err = sess.Do(func(sim *engine.Simulation) error {
		sp, err = sim.AddSpawner(origin, destination)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// RemoveSpawner stops a spawner
func (s *simServiceImpl) RemoveSpawner(ctx context.Context, sessionID, spawnerID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return sess.Do(func(sim *engine.Simulation) error {
		return sim.RemoveSpawner(spawnerID)
	})
}

// GetState returns the current snapshot of a session
func (s *simServiceImpl) GetState(ctx context.Context, sessionID string) (*engine.SimState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	var state *engine.SimState
	sess.Do(func(sim *engine.Simulation) error {
		state = sim.GetState()
		return nil
	})
	return state, nil
}

// FindPath runs a path query on the live lot of a session
func (s *simServiceImpl) FindPath(ctx context.Context, sessionID string, from, to grid.Position, class string) (*PathResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := engine.ParseClass(class)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	result := &PathResult{From: from, To: to, Class: c}
	sess.Do(func(sim *engine.Simulation) error {
		result.Path = sim.FindPath(from, to, c)
		return nil
	})
	result.Found = len(result.Path) > 0
	result.Length = len(result.Path)
	if result.Path == nil {
		result.Path = []grid.Position{}
	}
	return result, nil
}

// GetMessages returns narration newer than since
func (s *simServiceImpl) GetMessages(ctx context.Context, sessionID string, since int) ([]ledger.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	var msgs []ledger.Message
	sess.Do(func(sim *engine.Simulation) error {
		msgs = sim.Messages(since)
		return nil
	})
	if msgs == nil {
		msgs = []ledger.Message{}
	}
	return msgs, nil
}

// GetRatings reports satisfaction and revenue, plus archive totals when
// an archive is configured.
func (s *simServiceImpl) GetRatings(ctx context.Context, sessionID string) (*RatingsResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	result := &RatingsResult{}
	sess.Do(func(sim *engine.Simulation) error {
		result.Recent, result.Summary = sim.Ratings()
		result.Fees = sim.Fees()
		result.Revenue = sim.GetState().Revenue
		return nil
	})

	if s.archive != nil {
		totals, err := s.archive.Totals(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		result.Archive = &totals
	}
	return result, nil
}

// ListScenarios returns the available scenarios
func (s *simServiceImpl) ListScenarios(ctx context.Context) ([]*ScenarioInfo, error) {
	return s.configs.ListScenarios()
}

// LoadScenario returns one scenario
func (s *simServiceImpl) LoadScenario(ctx context.Context, scenarioID string) (*engine.ScenarioConfig, error) {
	return s.configs.LoadScenario(scenarioID)
}

// SaveScenario stores a scenario
func (s *simServiceImpl) SaveScenario(ctx context.Context, scenarioID string, cfg *engine.ScenarioConfig) error {
	return s.configs.SaveScenario(scenarioID, cfg)
}
