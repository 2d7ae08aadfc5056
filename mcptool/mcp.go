// Package mcptool exposes dasite operations as MCP tools so agents can
// drive visual checks over stdio: capture a page, compare against baselines,
// accept the current captures, and list known targets.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dasite/imagediff"
	"github.com/hazyhaar/dasite/snapshot"
)

// CaptureFunc captures a URL into the store and returns the identity. Wired
// by the caller to a browser-backed capture; when nil the dasite_capture
// tool is not registered, so the MCP surface still works on directories
// populated by earlier crawls.
type CaptureFunc func(ctx context.Context, url string) (string, error)

// Service registers dasite MCP tools.
type Service struct {
	store    *snapshot.Store
	diffOpts imagediff.Options
	capture  CaptureFunc
	logger   *slog.Logger
}

// New creates a Service over a snapshot store.
func New(store *snapshot.Store, diffOpts imagediff.Options, capture CaptureFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, diffOpts: diffOpts, capture: capture, logger: logger}
}

// Register registers all dasite tools on an MCP server.
func (s *Service) Register(srv *mcp.Server) {
	s.registerTargetsTool(srv)
	s.registerCompareTool(srv)
	s.registerAcceptTool(srv)
	if s.capture != nil {
		s.registerCaptureTool(srv)
	}
}

// Serve runs the MCP server over stdio until the context ends.
func Serve(ctx context.Context, srv *mcp.Server) error {
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool wires a typed endpoint into the MCP handler shape: decode
// arguments, run, marshal the response as a text content block. Tool
// failures are reported as tool errors, not protocol errors.
func addTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(ctx context.Context, req *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := endpoint(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- targets ---

type targetsReq struct{}

func (s *Service) registerTargetsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dasite_targets",
		Description: "List captured URL identities and whether each has a baseline.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	addTool(srv, tool, func(_ context.Context, _ *targetsReq) (any, error) {
		targets, err := s.store.Targets()
		if err != nil {
			return nil, err
		}
		type entry struct {
			Target      string `json:"target"`
			HasBaseline bool   `json:"has_baseline"`
		}
		out := make([]entry, 0, len(targets))
		for _, t := range targets {
			out = append(out, entry{Target: t.ID, HasBaseline: t.HasBaseline})
		}
		return map[string]any{"targets": out}, nil
	})
}

// --- compare ---

type compareReq struct {
	Threshold float64 `json:"threshold"`
}

func (s *Service) registerCompareTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dasite_compare",
		Description: "Compare all current captures against baselines. Returns per-target diff percentages, changed regions, and overall pass/fail under the given threshold.",
		InputSchema: inputSchema(map[string]any{
			"threshold": map[string]any{"type": "number", "description": "Overall failure cutoff in percent (default 0)"},
		}, nil),
	}

	addTool(srv, tool, func(_ context.Context, r *compareReq) (any, error) {
		comparisons, err := s.store.CompareAll(s.diffOpts)
		if err != nil {
			return nil, err
		}

		type entry struct {
			Target          string             `json:"target"`
			BaselineCreated bool               `json:"baseline_created,omitempty"`
			Changed         bool               `json:"changed"`
			DiffPercentage  float64            `json:"diff_percentage"`
			Regions         []imagediff.Region `json:"regions,omitempty"`
			Error           string             `json:"error,omitempty"`
		}
		out := make([]entry, 0, len(comparisons))
		maxDiff := 0.0
		errored := 0
		for _, c := range comparisons {
			e := entry{Target: c.Target.ID, BaselineCreated: c.BaselineCreated}
			if c.Err != nil {
				e.Error = c.Err.Error()
				errored++
			}
			if c.Result != nil {
				e.Changed = c.Result.Changed()
				e.DiffPercentage = c.Result.DiffPercentage
				e.Regions = c.Result.Regions
				if e.Changed && e.DiffPercentage > maxDiff {
					maxDiff = e.DiffPercentage
				}
			}
			out = append(out, e)
		}
		return map[string]any{
			"targets":  out,
			"max_diff": maxDiff,
			"errors":   errored,
			"passed":   maxDiff <= r.Threshold && errored == 0,
		}, nil
	})
}

// --- accept ---

type acceptReq struct{}

func (s *Service) registerAcceptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dasite_accept",
		Description: "Promote every current capture to baseline.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	addTool(srv, tool, func(_ context.Context, _ *acceptReq) (any, error) {
		count, err := s.store.Accept()
		if err != nil {
			return nil, err
		}
		return map[string]any{"accepted": count}, nil
	})
}

// --- capture ---

type captureReq struct {
	URL string `json:"url"`
}

func (s *Service) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "dasite_capture",
		Description: "Navigate to a URL and capture a full-page screenshot into the current slot.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to capture"},
		}, []string{"url"}),
	}

	addTool(srv, tool, func(ctx context.Context, r *captureReq) (any, error) {
		if r.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		id, err := s.capture(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		return map[string]any{"target": id}, nil
	})
}
