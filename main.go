// Command lotsim runs the parking-lot traffic simulator.
//
// Commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket
//     snapshots and an /mcp HTTP endpoint, optionally behind an ngrok tunnel
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API
//     if none is available
//  3. "run" simulates a scenario headless and prints a summary
//  4. "events" prints an event log file
//
// Flags and environment variables control host/port, the scenario
// directory, tuning, the event log and the rating archive.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/lotsim/api"
	"github.com/wricardo/lotsim/game/config"
	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/service"
	"github.com/wricardo/lotsim/game/session"
	"github.com/wricardo/lotsim/transport/mcp"
	"github.com/wricardo/lotsim/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Parking Lot Simulator"
)

const (
	sessionMaxAge        = 24 * time.Hour
	sessionCleanupPeriod = time.Hour
)

// options is everything the flags decide
type options struct {
	host        string
	port        int
	scenarioDir string
	tuningPath  string
	debug       bool

	ngrok       bool
	ngrokAuth   string
	ngrokDomain string

	eventLogDir string
	eventEvery  int
	archiveDB   string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.host, o.port)
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		host:        cmd.String("host"),
		port:        cmd.Int("port"),
		scenarioDir: cmd.String("scenario-dir"),
		tuningPath:  cmd.String("tuning"),
		debug:       cmd.Bool("debug"),
		ngrok:       cmd.Bool("ngrok"),
		ngrokAuth:   cmd.String("ngrok-auth"),
		ngrokDomain: cmd.String("ngrok-domain"),
		eventLogDir: cmd.String("event-log-dir"),
		eventEvery:  cmd.Int("event-every"),
		archiveDB:   cmd.String("archive-db"),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
		&cli.StringFlag{Name: "scenario-dir", Value: "scenarios", Usage: "Directory containing scenario files", Sources: cli.EnvVars("SCENARIO_DIR")},
		&cli.StringFlag{Name: "tuning", Usage: "YAML file overriding the default tuning", Sources: cli.EnvVars("LOTSIM_TUNING")},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		&cli.StringFlag{Name: "event-log-dir", Usage: "Write compressed tick and message logs per session into this directory", Sources: cli.EnvVars("LOTSIM_EVENT_LOG_DIR")},
		&cli.IntFlag{Name: "event-every", Value: 10, Usage: "Log every n-th tick (ticks with messages are always logged)"},
		&cli.StringFlag{Name: "archive-db", Usage: "SQLite file keeping finalized ratings and fees across runs", Sources: cli.EnvVars("LOTSIM_ARCHIVE_DB")},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "lotsim",
		Usage:   AppName,
		Version: Version,
		Flags:   globalFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  serveAction,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  stdioAction,
			},
			{
				Name:      "run",
				Usage:     "Simulate a scenario headless and print a summary",
				ArgsUsage: "[scenario id or file]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "ticks", Value: 600, Usage: "Number of ticks"},
					&cli.FloatFlag{Name: "delta-ms", Usage: "Milliseconds per tick (default: tuned tick length)"},
					&cli.FloatFlag{Name: "time-scale", Value: 1, Usage: "Simulation speed multiplier"},
					&cli.BoolFlag{Name: "json", Usage: "Print the final state as JSON"},
				},
				Action: runAction,
			},
			{
				Name:      "events",
				Usage:     "Print the entries of an event log file",
				ArgsUsage: "<file.jsonl.zst>",
				Action:    eventsAction,
			},
		},
	}
}

// main loads .env, then hands over to the command tree.
func main() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// services bundles what the serving commands share
type services struct {
	sim      service.SimService
	sessions *session.Manager
	archive  *ledger.SQLiteArchive
}

// Close stops every session and flushes the archive
func (s *services) Close() {
	s.sessions.CloseAll()
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			log.Printf("Archive close error: %v", err)
		}
	}
}

func loadTuning(opts options) (engine.Tuning, error) {
	if opts.tuningPath == "" {
		return engine.DefaultTuning(), nil
	}
	t, err := engine.LoadTuning(opts.tuningPath)
	if err != nil {
		return engine.Tuning{}, fmt.Errorf("failed to load tuning: %w", err)
	}
	log.Printf("Loaded tuning from %s", opts.tuningPath)
	return t, nil
}

// initializeServices wires the scenario and session managers, the optional
// archive and event log, and the simulation service.
func initializeServices(opts options) (*services, error) {
	configManager, err := config.NewManager(opts.scenarioDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	tuning, err := loadTuning(opts)
	if err != nil {
		return nil, err
	}

	sessionOpts := []session.Option{session.WithTuning(tuning)}
	var serviceOpts []service.Option
	var archive *ledger.SQLiteArchive
	if opts.archiveDB != "" {
		archive, err = ledger.OpenSQLiteArchive(opts.archiveDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
		sessionOpts = append(sessionOpts, session.WithArchive(archive))
		serviceOpts = append(serviceOpts, service.WithArchive(archive))
		log.Printf("Archiving ratings and fees to %s", opts.archiveDB)
	}
	if opts.eventLogDir != "" {
		sessionOpts = append(sessionOpts, session.WithEventLog(opts.eventLogDir, opts.eventEvery))
		log.Printf("Writing event logs to %s", opts.eventLogDir)
	}

	sessionManager := session.NewManager(sessionOpts...)
	return &services{
		sim:      service.NewSimService(sessionManager, configManager, serviceOpts...),
		sessions: sessionManager,
		archive:  archive,
	}, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within the retention window.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(sessionCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the API at the root and the MCP endpoint at /mcp. The
// MCP client calls back into the API at baseURL.
func newRouter(sim service.SimService, hub *websocket.Hub, baseURL string) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(sim, hub))
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	log.Printf("Starting %s v%s (mode: serve)", AppName, Version)

	svc, err := initializeServices(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	return runHTTPServer(ctx, opts, svc)
}

// runHTTPServer serves the REST API, WebSocket hub and /mcp endpoint until
// SIGINT/SIGTERM. If ngrok is enabled it also provisions a public tunnel.
func runHTTPServer(parent context.Context, opts options, svc *services) error {
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	addr := opts.addr()
	mainRouter := newRouter(svc.sim, hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessionCleanupRoutine(ctx, svc.sessions)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if opts.ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, opts, mainRouter)
		}()
	}

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, opts options, handler http.Handler) {
	if opts.ngrokAuth == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.ngrokDomain))
		log.Printf("Using custom ngrok domain: %s", opts.ngrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.ngrokAuth))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// externalAPI reports whether a lotsim API answers at baseURL
func externalAPI(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// stdioAction runs an MCP stdio server. It reuses an API already listening
// on --host/--port; otherwise it starts an internal API bound to a random
// loopback port and targets that.
func stdioAction(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)

	externalURL := "http://" + opts.addr()
	baseURL := externalURL
	log.Printf("Checking for external API server at %s...", externalURL)

	if externalAPI(externalURL) {
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		svc, err := initializeServices(opts)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		hub := websocket.NewHub()
		go hub.Run()
		defer hub.Stop()

		httpServer := &http.Server{Handler: api.NewServer(svc.sim, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
