package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mailreeve/mailreeve/internal/engine"
	"github.com/mailreeve/mailreeve/internal/gmail"
	"github.com/mailreeve/mailreeve/internal/rules"
)

// Serve exposes rule management and rule application as MCP tools over
// stdio. It blocks until stdin is closed or the context is cancelled.
//
// apply_rules defaults to dry run; a caller has to pass dry_run=false
// explicitly before anything in the mailbox is touched.
func Serve(ctx context.Context, store *rules.Store, api gmail.API, eng *engine.Engine) error {
	s := server.NewMCPServer(
		"mailreeve",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	h := &handlers{store: store, api: api, engine: eng}

	s.AddTool(listRulesTool(), h.listRules)
	s.AddTool(getRuleTool(), h.getRule)
	s.AddTool(addRuleTool(), h.addRule)
	s.AddTool(deleteRuleTool(), h.deleteRule)
	s.AddTool(listLabelsTool(), h.listLabels)
	s.AddTool(applyRulesTool(), h.applyRules)

	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func listRulesTool() mcp.Tool {
	return mcp.NewTool("list_rules",
		mcp.WithDescription("List every configured mailbox rule with its conditions and actions."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func getRuleTool() mcp.Tool {
	return mcp.NewTool("get_rule",
		mcp.WithDescription("Get one mailbox rule by id or name."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Rule id or name (names match case-insensitively)"),
		),
	)
}

func addRuleTool() mcp.Tool {
	return mcp.NewTool("add_rule",
		mcp.WithDescription("Add a mailbox rule. Fields: name, description, is_enabled (default true), conditions (list of {field, operator, value}), condition_conjunction (AND or OR), actions (list of {type, label_name}). Fields: from, to, subject, body_snippet, label, date. Operators: contains, not_contains, equals, not_equals, starts_with, ends_with, before, after. Action types: add_label, remove_label, trash, delete, mark_read, mark_unread."),
		mcp.WithString("rule_json",
			mcp.Required(),
			mcp.Description("The rule as a JSON object"),
		),
	)
}

func deleteRuleTool() mcp.Tool {
	return mcp.NewTool("delete_rule",
		mcp.WithDescription("Delete a mailbox rule by id or name. The rule is removed from the rule file; the mailbox is not touched."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Rule id or name (names match case-insensitively)"),
		),
	)
}

func listLabelsTool() mcp.Tool {
	return mcp.NewTool("list_labels",
		mcp.WithDescription("List the mailbox labels with their ids and types."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func applyRulesTool() mcp.Tool {
	return mcp.NewTool("apply_rules",
		mcp.WithDescription("Apply the configured rules to the mailbox and report what was scanned, matched and done. Dry run by default: pass dry_run=false to actually modify messages."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("query",
			mcp.Description("Gmail search expression ANDed into every rule's scan (e.g. 'in:inbox older_than:30d')"),
		),
		mcp.WithString("rule_ids",
			mcp.Description("Comma-separated rule ids or names to run; empty runs every enabled rule"),
		),
		mcp.WithNumber("scan_limit",
			mcp.Description("Maximum candidates fetched across all rules combined (default unbounded, capped at 10000)"),
		),
		mcp.WithString("date_after",
			mcp.Description("Only messages received after this date; absolute (2024-05-01) or relative (7d, 2w, 1m, 1y)"),
		),
		mcp.WithString("date_before",
			mcp.Description("Only messages received before this date; same forms as date_after"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Report what would happen without modifying anything (default true)"),
		),
	)
}
