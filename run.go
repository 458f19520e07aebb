package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/lotsim/game/config"
	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/eventlog"
	"github.com/wricardo/lotsim/game/ledger"
)

const headlessSession = "run"

// runConfig is one headless run
type runConfig struct {
	scenario  string
	ticks     int
	deltaMs   float64
	timeScale float64
	asJSON    bool
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	return runHeadless(ctx, os.Stdout, optionsFrom(cmd), runConfig{
		scenario:  cmd.Args().First(),
		ticks:     cmd.Int("ticks"),
		deltaMs:   cmd.Float("delta-ms"),
		timeScale: cmd.Float("time-scale"),
		asJSON:    cmd.Bool("json"),
	})
}

// loadScenario accepts a path to a scenario file, a scenario id in the
// scenario directory, or nothing for the default scenario.
func loadScenario(scenarioDir, ref string) (string, *engine.ScenarioConfig, error) {
	if ref != "" {
		if st, err := os.Stat(ref); err == nil && !st.IsDir() {
			data, err := os.ReadFile(ref)
			if err != nil {
				return "", nil, err
			}
			cfg, err := config.ValidateDocument(data)
			if err != nil {
				return "", nil, fmt.Errorf("%s: %w", ref, err)
			}
			return ref, cfg, nil
		}
	}

	configManager, err := config.NewManager(scenarioDir)
	if err != nil {
		return "", nil, err
	}
	if ref == "" {
		id, cfg := configManager.GetDefault()
		return id, cfg, nil
	}
	cfg, err := configManager.LoadScenario(ref)
	if err != nil {
		return "", nil, err
	}
	return ref, cfg, nil
}

// runHeadless simulates rc.ticks ticks and writes a summary to w. The event
// log and the archive are wired the same way serve wires them.
func runHeadless(ctx context.Context, w io.Writer, opts options, rc runConfig) error {
	if rc.ticks < 0 {
		return fmt.Errorf("ticks must not be negative")
	}
	if rc.deltaMs > engine.MaxStepDeltaMs {
		return fmt.Errorf("delta-ms must be at most %d", engine.MaxStepDeltaMs)
	}
	id, cfg, err := loadScenario(opts.scenarioDir, rc.scenario)
	if err != nil {
		return err
	}
	tuning, err := loadTuning(opts)
	if err != nil {
		return err
	}

	var observers engine.Observers
	if opts.archiveDB != "" {
		archive, err := ledger.OpenSQLiteArchive(opts.archiveDB)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer archive.Close()
		observers.Ratings = archive
		observers.Fees = archive
	}
	if opts.eventLogDir != "" {
		logger := eventlog.NewLogger(opts.eventLogDir, headlessSession, opts.eventEvery)
		defer func() {
			if err := logger.Close(); err != nil {
				log.Printf("Event log close error: %v", err)
			}
		}()
		observers.Ticks = logger
		observers.Messages = logger
	}

	sim, err := engine.NewSimulation(cfg, tuning,
		engine.WithSession(headlessSession),
		engine.WithObservers(observers))
	if err != nil {
		return err
	}
	if rc.timeScale > 0 {
		if err := sim.SetTimeScale(rc.timeScale); err != nil {
			return err
		}
	}

	delta := rc.deltaMs
	if delta <= 0 {
		delta = sim.Tuning().TickMs
	}
	for i := 0; i < rc.ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sim.Tick(delta)
	}

	state := sim.GetState()
	if rc.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	writeSummary(w, id, state)
	return nil
}

func writeSummary(w io.Writer, id string, state *engine.SimState) {
	fmt.Fprintf(w, "Scenario: %s (%s)\n", state.Scenario, id)
	fmt.Fprintf(w, "Ticks: %d (%.1fs simulated)\n", state.Tick, state.ElapsedMs/1000)

	s := state.Stats
	fmt.Fprintf(w, "Vehicles: spawned %d, parked %d, abandoned %d, left %d, on the lot %d\n",
		s.Spawned, s.Parked, s.Abandoned, s.Despawned, len(state.Vehicles))
	fmt.Fprintf(w, "Pedestrians: %d\n", len(state.Pedestrians))
	fmt.Fprintf(w, "Reserved spots: %d\n", len(state.Reservations))
	fmt.Fprintf(w, "Revenue: %.2f\n", state.Revenue)

	r := state.Ratings
	if r.Finalized > 0 {
		fmt.Fprintf(w, "Ratings: average %.2f over %d drivers (low %.1f, high %.1f)\n",
			r.Average, r.Finalized, r.Lowest, r.Highest)
	} else {
		fmt.Fprintf(w, "Ratings: none finalized\n")
	}

	msgs := state.Messages
	if len(msgs) > 10 {
		msgs = msgs[len(msgs)-10:]
	}
	if len(msgs) > 0 {
		fmt.Fprintln(w, "Messages:")
		for _, m := range msgs {
			fmt.Fprintf(w, "  #%d [tick %d] %s\n", m.Seq, m.Tick, m.Text)
		}
	}
}

func eventsAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: lotsim events <file.jsonl.zst>")
	}
	return printEvents(os.Stdout, path)
}

// printEvents writes one line per event log entry
func printEvents(w io.Writer, path string) error {
	entries, err := eventlog.ReadFile(path)
	for _, e := range entries {
		switch {
		case e.Tick != nil:
			t := e.Tick
			fmt.Fprintf(w, "%s tick=%d vehicles=%d peds=%d reserved=%d revenue=%.2f msgs=%d\n",
				e.At.Format("15:04:05.000"), t.Tick, t.Vehicles, t.Pedestrians, t.Reserved, t.Revenue, t.Messages)
		case e.Message != nil:
			m := e.Message
			fmt.Fprintf(w, "%s #%d [tick %d] %s: %s\n",
				e.At.Format("15:04:05.000"), m.Seq, m.Tick, m.Code, m.Text)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d entries\n", len(entries))
	return nil
}
