// Package mcp serves mailreeve's rule tools to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailreeve/mailreeve/internal/engine"
	"github.com/mailreeve/mailreeve/internal/gmail"
	"github.com/mailreeve/mailreeve/internal/rules"
)

// maxScanLimit caps scan_limit so a single tool call cannot walk an
// entire large mailbox.
const maxScanLimit = 10000

type handlers struct {
	store  *rules.Store
	api    gmail.API
	engine *engine.Engine
}

func (h *handlers) listRules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, issues, err := h.store.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load rules failed: %v", err)), nil
	}
	if all == nil {
		all = []rules.Rule{}
	}

	resp := struct {
		Rules          []rules.Rule `json:"rules"`
		SkippedInvalid int          `json:"skipped_invalid,omitempty"`
	}{
		Rules:          all,
		SkippedInvalid: len(issues),
	}
	return jsonResult(resp)
}

func (h *handlers) getRule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	key, _ := args["id"].(string)
	if key == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	r, err := h.store.Get(key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(r)
}

func (h *handlers) addRule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	raw, _ := args["rule_json"].(string)
	if raw == "" {
		return mcp.NewToolResultError("rule_json parameter is required"), nil
	}

	var r rules.Rule
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid rule JSON: %v", err)), nil
	}

	stored, err := h.store.Add(r)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add rule failed: %v", err)), nil
	}
	return jsonResult(stored)
}

func (h *handlers) deleteRule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	key, _ := args["id"].(string)
	if key == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	removed, err := h.store.Delete(key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete rule failed: %v", err)), nil
	}

	resp := struct {
		Deleted *rules.Rule `json:"deleted"`
	}{Deleted: removed}
	return jsonResult(resp)
}

func (h *handlers) listLabels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	labels, err := h.api.ListLabels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list labels failed: %v", err)), nil
	}
	if labels == nil {
		labels = []*gmail.Label{}
	}
	return jsonResult(labels)
}

func (h *handlers) applyRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	opts := engine.Options{
		DryRun:    true,
		ScanLimit: intArg(args, "scan_limit", 0),
	}
	if v, ok := args["dry_run"].(bool); ok {
		opts.DryRun = v
	}
	if v, ok := args["query"].(string); ok {
		opts.Query = strings.TrimSpace(v)
	}
	if v, ok := args["rule_ids"].(string); ok {
		opts.RuleKeys = splitKeys(v)
	}
	if v, ok := args["date_after"].(string); ok && v != "" {
		t, err := rules.ParseDate(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date_after: %v", err)), nil
		}
		opts.DateAfter = t
	}
	if v, ok := args["date_before"].(string); ok && v != "" {
		t, err := rules.ParseDate(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date_before: %v", err)), nil
		}
		opts.DateBefore = t
	}

	all, _, err := h.store.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load rules failed: %v", err)), nil
	}

	summary, err := h.engine.Run(ctx, all, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run aborted: %v", err)), nil
	}
	return jsonResult(summary)
}

// splitKeys splits a comma-separated list of rule ids or names, trimming
// whitespace and dropping empty entries.
func splitKeys(s string) []string {
	var keys []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

// intArg extracts a non-negative integer from a map, with a default
// value. JSON numbers arrive as float64. Negative values are clamped to
// 0, and values above maxScanLimit are clamped to maxScanLimit.
func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		n := int(v)
		if n < 0 {
			return 0
		}
		if n > maxScanLimit {
			return maxScanLimit
		}
		return n
	}
	return def
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
