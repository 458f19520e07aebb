package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/service"
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrInvalidScenario  = engine.ErrInvalidScenario
	ErrInvalidName      = errors.New("invalid scenario name")
)

// DefaultScenario is loaded by GetDefault when present
const DefaultScenario = "small_lot"

const schemaURL = "https://lotsim.local/schemas/scenario.schema.json"

//go:embed scenario.schema.json
var schemaSource string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error

	validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Schema returns the compiled scenario document schema
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaSource)
	})
	return schema, schemaErr
}

// SchemaSource returns the raw JSON schema for scenario documents
func SchemaSource() string {
	return schemaSource
}

// ValidateDocument checks a raw scenario document against the schema and
// then against the lot rules, and returns the decoded scenario.
func ValidateDocument(data []byte) (*engine.ScenarioConfig, error) {
	s, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return engine.ParseScenario(data)
}

// Manager handles scenario loading and caching
type Manager struct {
	scenarioDir string
	scenarios   map[string]*engine.ScenarioConfig
	mu          sync.RWMutex
}

// NewManager creates a scenario manager over dir
func NewManager(scenarioDir string) (*Manager, error) {
	if _, err := os.Stat(scenarioDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario directory does not exist: %s", scenarioDir)
	}
	if _, err := Schema(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Manager{
		scenarioDir: scenarioDir,
		scenarios:   make(map[string]*engine.ScenarioConfig),
	}, nil
}

// LoadScenario loads a scenario by name; names may carry the .json suffix
func (m *Manager) LoadScenario(name string) (*engine.ScenarioConfig, error) {
	name = strings.TrimSuffix(name, ".json")
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}

	m.mu.RLock()
	if cfg, exists := m.scenarios[name]; exists {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cfg, exists := m.scenarios[name]; exists {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Join(m.scenarioDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrScenarioNotFound
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	cfg, err := ValidateDocument(data)
	if err != nil {
		return nil, err
	}

	m.scenarios[name] = cfg
	return cfg, nil
}

// ListScenarios returns information about every valid scenario file,
// sorted by ID. Invalid files are skipped.
func (m *Manager) ListScenarios() ([]*service.ScenarioInfo, error) {
	entries, err := os.ReadDir(m.scenarioDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var scenarios []*service.ScenarioInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		cfg, err := m.LoadScenario(id)
		if err != nil {
			continue
		}
		scenarios = append(scenarios, Describe(entry.Name(), id, cfg))
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].ScenarioID < scenarios[j].ScenarioID })
	return scenarios, nil
}

// Describe summarizes a scenario for listings
func Describe(filename, id string, cfg *engine.ScenarioConfig) *service.ScenarioInfo {
	spots := 0
	for _, p := range cfg.Placements {
		if p.Kind == grid.ParkingSpot {
			spots++
		}
	}
	return &service.ScenarioInfo{
		Filename:    filename,
		ScenarioID:  id,
		Name:        cfg.Name,
		Description: cfg.Description,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Spots:       spots,
		Spawners:    len(cfg.Spawners),
	}
}

// GetDefault returns small_lot when present, otherwise the first valid
// scenario in the directory, otherwise a built-in minimal lot.
func (m *Manager) GetDefault() (string, *engine.ScenarioConfig) {
	if cfg, err := m.LoadScenario(DefaultScenario); err == nil {
		return DefaultScenario, cfg
	}
	if list, err := m.ListScenarios(); err == nil && len(list) > 0 {
		if cfg, err := m.LoadScenario(list[0].ScenarioID); err == nil {
			return list[0].ScenarioID, cfg
		}
	}
	return "minimal", MinimalScenario()
}

// SaveScenario validates cfg and writes it to disk
func (m *Manager) SaveScenario(name string, cfg *engine.ScenarioConfig) error {
	name = strings.TrimSuffix(name, ".json")
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	// round trip through the schema so saved files always load again
	checked, err := ValidateDocument(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(m.scenarioDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	m.mu.Lock()
	m.scenarios[name] = checked
	m.mu.Unlock()
	return nil
}

// RefreshCache drops every cached scenario
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios = make(map[string]*engine.ScenarioConfig)
}

// MinimalScenario is a single-spot lot used when no scenario files exist
func MinimalScenario() *engine.ScenarioConfig {
	return &engine.ScenarioConfig{
		Name:        "minimal",
		Description: "Built-in lot with one spot off a through road",
		Width:       5,
		Height:      3,
		Layout: []string{
			"RRRRR",
			"AAAAA",
			"WWWWW",
		},
		Placements: []engine.PlacementConfig{
			{X: 2, Y: 1, Kind: grid.ParkingSpot, Orientation: grid.North, Payment: grid.PayNone},
			{X: 2, Y: 2, Kind: grid.PedestrianDestination},
		},
		Spawners: []engine.SpawnerConfig{
			{Origin: grid.Position{X: 0, Y: 0}, Destination: grid.Position{X: 4, Y: 0}},
		},
		Seed: 1,
	}
}
