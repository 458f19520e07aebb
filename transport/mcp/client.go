package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/service"
	"github.com/wricardo/lotsim/game/traffic"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

const instructions = `Parking Lot Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The lot is a grid of cells. Vehicles enter from spawners, look for a free
parking spot, park, let their passengers walk to a destination, then drive
out. Ratings drop when drivers meet restricted surfaces or unmet needs; fees
are collected at the spot or at the exit.

MAP LEGEND:
  = road    . asphalt   " grass   _ sidewalk   : gravel
  P free spot   # reserved spot   $ fee booth   ^ speed bump
  D pedestrian destination   F facility   C vehicle   p pedestrian

AVAILABLE TOOLS:
- create_session: start a simulation from a scenario
- list_sessions / get_session: inspect running simulations
- sim_state: map, vehicles and stats of a session
- step: advance time (ticks, delta_ms, time_scale, paused, reset)
- reset: rebuild a session from its scenario
- find_path: query a vehicle or pedestrian route
- add_spawner / remove_spawner: change the traffic sources
- messages: narration since a sequence number
- ratings: satisfaction and revenue
- list_scenarios: available scenario files

Coordinates are {x, y} with y growing southward.`

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Parking Lot Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func positionProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "integer"},
			"y": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"x", "y"},
	}
}

var sessionOnly = mcp.ToolInputSchema{
	Type: "object",
	Properties: map[string]interface{}{
		"session_id": stringProp("Session ID"),
	},
	Required: []string{"session_id"},
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new simulation session with optional scenario selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"scenario_id": stringProp("ID of the scenario to use (optional)"),
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active simulation sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionOnly,
	}, c.handleGetSession)

	// Simulation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "sim_state",
		Description: "Get the map, vehicles, pedestrians and statistics of a session",
		InputSchema: sessionOnly,
	}, c.handleSimState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Advance the simulation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": stringProp("Session ID"),
				"ticks":      numberProp(fmt.Sprintf("Number of ticks (default 1, at most %d)", engine.MaxStepTicks)),
				"delta_ms":   numberProp(fmt.Sprintf("Milliseconds per tick (default: tuned tick length, at most %d)", engine.MaxStepDeltaMs)),
				"time_scale": numberProp(fmt.Sprintf("Simulation speed multiplier in (0, %d]", int(engine.MaxTimeScale))),
				"paused": map[string]interface{}{
					"type":        "boolean",
					"description": "Pause or resume before stepping",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset before stepping",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset",
		Description: "Rebuild the simulation from its scenario",
		InputSchema: sessionOnly,
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "find_path",
		Description: "Find a direction-aware route between two cells",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": stringProp("Session ID"),
				"from":       positionProp("Start cell"),
				"to":         positionProp("Target cell"),
				"class": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"vehicle", "pedestrian"},
					"description": "Mover class (default vehicle)",
				},
			},
			Required: []string{"session_id", "from", "to"},
		},
	}, c.handleFindPath)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_spawner",
		Description: "Add a traffic source that sends vehicles from origin toward destination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id":  stringProp("Session ID"),
				"origin":      positionProp("Entry cell"),
				"destination": positionProp("Exit cell"),
			},
			Required: []string{"session_id", "origin", "destination"},
		},
	}, c.handleAddSpawner)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_spawner",
		Description: "Stop a traffic source; its vehicles stay on the lot",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": stringProp("Session ID"),
				"spawner_id": stringProp("Spawner ID such as sp-1"),
			},
			Required: []string{"session_id", "spawner_id"},
		},
	}, c.handleRemoveSpawner)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "messages",
		Description: "Get narration messages newer than a sequence number",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": stringProp("Session ID"),
				"since":      numberProp("Return messages with a sequence number above this (default 0)"),
			},
			Required: []string{"session_id"},
		},
	}, c.handleMessages)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "ratings",
		Description: "Get satisfaction ratings, fees and revenue of a session",
		InputSchema: sessionOnly,
	}, c.handleRatings)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_scenarios",
		Description: "List available scenarios",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListScenarios)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(id) + suffix, nil
}

// position reads an {x, y} argument
func position(args map[string]interface{}, key string) (grid.Position, error) {
	raw, ok := args[key].(map[string]interface{})
	if !ok {
		return grid.Position{}, fmt.Errorf("%s must be an object with x and y", key)
	}
	x, okX := raw["x"].(float64)
	y, okY := raw["y"].(float64)
	if !okX || !okY {
		return grid.Position{}, fmt.Errorf("%s must be an object with x and y", key)
	}
	return grid.Position{X: int(x), Y: int(y)}, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	scenarioID, _ := args["scenario_id"].(string)

	body := map[string]string{}
	if scenarioID != "" {
		body["scenario_id"] = scenarioID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resp.Sessions) == 0 {
		return mcp.NewToolResultText("No active sessions"), nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Active sessions (%d):\n", len(resp.Sessions)))
	for _, s := range resp.Sessions {
		tick := 0
		if s.State != nil {
			tick = s.State.Tick
		}
		b.WriteString(fmt.Sprintf("- %s (scenario: %s, tick %d)\n", s.ID, s.ScenarioID, tick))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleSimState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var state engine.SimState
	if err := c.apiCall(ctx, "GET", path, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatState(&state)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/step")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]interface{}{}
	for _, key := range []string{"ticks", "delta_ms", "time_scale", "paused", "reset"} {
		if v, ok := args[key]; ok {
			body[key] = v
		}
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/reset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var resp struct {
		State *engine.SimState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Simulation reset.\n\n" + formatState(resp.State)), nil
}

func (c *Client) handleFindPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := position(args, "from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := position(args, "to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	class, _ := args["class"].(string)

	var result service.PathResult
	body := map[string]interface{}{"from": from, "to": to, "class": class}
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPath(&result)), nil
}

func (c *Client) handleAddSpawner(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/spawners")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	origin, err := position(args, "origin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	destination, err := position(args, "destination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sp traffic.Spawner
	body := map[string]interface{}{"origin": origin, "destination": destination}
	if err := c.apiCall(ctx, "POST", path, body, &sp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added spawner %s: %s -> %s", sp.ID, sp.Origin, sp.Destination)), nil
}

func (c *Client) handleRemoveSpawner(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	spawnerID, _ := args["spawner_id"].(string)
	if spawnerID == "" {
		return mcp.NewToolResultError("spawner_id is required"), nil
	}
	path, err := sessionPath(args, "/spawners/"+url.PathEscape(spawnerID))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := c.apiCall(ctx, "DELETE", path, nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed spawner %s", spawnerID)), nil
}

func (c *Client) handleMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	since := 0
	if v, ok := args["since"].(float64); ok && v > 0 {
		since = int(v)
	}
	path, err := sessionPath(args, fmt.Sprintf("/messages?since=%d", since))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp struct {
		LastSeq  int              `json:"last_seq"`
		Messages []ledger.Message `json:"messages"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resp.Messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages after #%d", since)), nil
	}
	return mcp.NewToolResultText(formatMessages(resp.Messages) + fmt.Sprintf("\nLast sequence: %d", resp.LastSeq)), nil
}

func (c *Client) handleRatings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/ratings")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var result service.RatingsResult
	if err := c.apiCall(ctx, "GET", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRatings(&result)), nil
}

func (c *Client) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var scenarios []*service.ScenarioInfo
	if err := c.apiCall(ctx, "GET", "/api/scenarios", nil, &scenarios); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(scenarios) == 0 {
		return mcp.NewToolResultText("No scenarios available"), nil
	}

	var b strings.Builder
	b.WriteString("Available scenarios:\n")
	for _, s := range scenarios {
		b.WriteString(fmt.Sprintf("- %s: %s (%dx%d, %d spots, %d spawners)\n",
			s.ScenarioID, s.Name, s.Width, s.Height, s.Spots, s.Spawners))
		if s.Description != "" {
			b.WriteString(fmt.Sprintf("    %s\n", s.Description))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
