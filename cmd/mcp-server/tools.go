package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gilby125/seven-continents/planner"
)

// toolLimits bounds plan_route so a tool call cannot run unbounded.
type toolLimits struct {
	MaxSearches int
	Timeout     time.Duration
}

func registerTools(s *server.MCPServer, session *planner.Session, limits toolLimits) {
	s.AddTool(mcp.NewTool("segment_info",
		mcp.WithDescription("Distance, flight time and range check for one leg between two airports"),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("Departure airport code (e.g., KLAX, NZAA)"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Arrival airport code (e.g., KMIA, SCCI)"),
		),
		mcp.WithNumber("leg",
			mcp.Description("Leg number within the route, selects the plane. Default 1."),
		),
	), segmentInfo(session))

	s.AddTool(mcp.NewTool("airport_info",
		mcp.WithDescription("Look up an airport and its nearest larger alternates"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Airport code"),
		),
	), airportInfo(session))

	s.AddTool(mcp.NewTool("plan_route",
		mcp.WithDescription("Search for the fastest route that lands on all seven continents"),
		mcp.WithNumber("max_searches",
			mcp.Description(fmt.Sprintf("Random routes to try. Capped at %d.", limits.MaxSearches)),
		),
		mcp.WithString("start_airport_codes",
			mcp.Description("Comma separated airport codes the route must start with, in order"),
		),
		mcp.WithString("start_continent_codes",
			mcp.Description("Comma separated continent codes (AF, AN, AS, EU, NA, OC, SA) for the first legs"),
		),
		mcp.WithNumber("seed",
			mcp.Description("Random seed for a reproducible search"),
		),
		mcp.WithBoolean("optimize",
			mcp.Description("Run the local optimizer over the best routes. Default follows server config."),
		),
	), planRoute(session, limits))
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments format")
	}
	return argsMap, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error marshaling response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func segmentInfo(session *planner.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, err := arguments(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		from, _ := argsMap["from"].(string)
		to, _ := argsMap["to"].(string)
		if from == "" || to == "" {
			return mcp.NewToolResultError("from and to are required"), nil
		}
		legVal, _ := argsMap["leg"].(float64)
		leg := int(legVal)
		if leg < 1 {
			leg = 1
		}

		info, err := session.Segment(strings.ToUpper(from), strings.ToUpper(to), leg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(info)
	}
}

func airportInfo(session *planner.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, err := arguments(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		code, _ := argsMap["code"].(string)
		if code == "" {
			return mcp.NewToolResultError("code is required"), nil
		}
		stop, err := session.Airport(strings.ToUpper(code))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(stop)
	}
}

func planRoute(session *planner.Session, limits toolLimits) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, err := arguments(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var o planner.Overrides
		maxSearches := min(session.Config().SearchConfig.MaxSearches, limits.MaxSearches)
		if v, ok := argsMap["max_searches"].(float64); ok {
			if v < 1 {
				return mcp.NewToolResultError("max_searches must be at least 1"), nil
			}
			maxSearches = min(int(v), limits.MaxSearches)
		}
		o.MaxSearches = &maxSearches
		if v, _ := argsMap["start_airport_codes"].(string); v != "" {
			o.StartAirportCodes = strings.Split(v, ",")
		}
		if v, _ := argsMap["start_continent_codes"].(string); v != "" {
			o.StartContinentCodes = strings.Split(v, ",")
		}
		if v, ok := argsMap["seed"].(float64); ok {
			seed := int64(v)
			o.Seed = &seed
		}
		if v, ok := argsMap["optimize"].(bool); ok {
			o.OptimizationEnabled = &v
		}

		run, err := session.Fork(o.Apply(session.Config().SearchConfig))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if limits.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, limits.Timeout)
			defer cancel()
		}
		res, err := run.Run(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error planning route: %v", err)), nil
		}
		return mcp.NewToolResultText(planner.Summary(res)), nil
	}
}
