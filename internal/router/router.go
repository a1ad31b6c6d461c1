package router

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/stellarlinkco/socbot/internal/queries"
	"github.com/stellarlinkco/socbot/internal/splunk"
)

// Searcher runs one Splunk search to completion.
type Searcher interface {
	Search(ctx context.Context, spl string) (*splunk.Job, error)
}

// Summarizer turns questions into SPL and search results into triage
// summaries.
type Summarizer interface {
	GenerateSPL(ctx context.Context, question string) (string, error)
	ExplainResults(ctx context.Context, question, spl string, rows []splunk.Row) (string, error)
}

// Notify delivers an interim status line to the chat while the turn is
// still running ("please wait" style). May be nil.
type Notify func(text string)

// Router maps a parsed ChatCommand to a Splunk search, waits for the
// result and produces the final chat reply. One call is one turn.
type Router struct {
	splunk      Searcher
	ai          Summarizer
	custom      *queries.Set
	summaryRows int
}

func New(searcher Searcher, summarizer Summarizer, custom *queries.Set, summaryRows int) *Router {
	if custom == nil {
		custom, _ = queries.Load("")
	}
	if summaryRows <= 0 {
		summaryRows = 20
	}
	return &Router{
		splunk:      searcher,
		ai:          summarizer,
		custom:      custom,
		summaryRows: summaryRows,
	}
}

// Route handles one inbound message end to end. The returned error is
// either an ErrParse (safe to show the user verbatim) or an internal
// failure the caller should convert to a generic chat error.
func (r *Router) Route(ctx context.Context, text string, notify Notify) (string, error) {
	cmd, err := Parse(text)
	if err != nil {
		return "", err
	}

	switch cmd.Intent {
	case IntentStart:
		return "AI SOC Assistant is online.\n\n" + r.HelpText(), nil
	case IntentHelp:
		return r.HelpText(), nil
	}

	question, spl, err := r.resolveSearch(ctx, cmd, notify)
	if err != nil {
		return "", err
	}

	send(notify, "Running Splunk query, please wait...")

	job, err := r.splunk.Search(ctx, spl)
	if err != nil {
		return "", err
	}
	log.Printf("[router] search done sid=%s rows=%d intent=%s", job.SID, len(job.Rows), cmd.Intent)

	summaryRows := job.Rows
	if len(summaryRows) > r.summaryRows {
		summaryRows = summaryRows[:r.summaryRows]
	}

	body := r.summarize(ctx, question, spl, summaryRows)
	return fmt.Sprintf("%s\n\nSID: %s (rows: %d)", body, job.SID, len(job.Rows)), nil
}

// resolveSearch picks the SPL and the question fed to the summarizer.
func (r *Router) resolveSearch(ctx context.Context, cmd ChatCommand, notify Notify) (question, spl string, err error) {
	switch cmd.Intent {
	case IntentFailedLogins:
		return fmt.Sprintf("Investigate failed logins in the last %s.", cmd.Window),
			BuildFailedLoginsSPL(cmd.Window), nil
	case IntentErrors:
		return fmt.Sprintf("Summarize critical errors in the last %s.", cmd.Window),
			BuildErrorsSPL(cmd.Window), nil
	case IntentSuspiciousProcess:
		return fmt.Sprintf("Check suspicious process activity in the last %s.", cmd.Window),
			BuildSuspiciousProcessSPL(cmd.Window), nil
	case IntentCustomQuery:
		query, ok := r.custom.Get(cmd.QueryName)
		if !ok {
			return "", "", fmt.Errorf("%w: unknown query %q (see /help)", ErrParse, cmd.QueryName)
		}
		window := cmd.Window
		if window == "" {
			window = query.DefaultWindow()
		}
		question = query.Question
		if question == "" {
			question = fmt.Sprintf("Review %s activity in the last %s.", query.Name, window)
		}
		return question, query.Build(window), nil
	case IntentAsk:
		send(notify, "Generating SPL from your question...")
		spl, err = r.ai.GenerateSPL(ctx, cmd.Question)
		if err != nil {
			return "", "", fmt.Errorf("could not translate question to SPL: %w", err)
		}
		return cmd.Question, spl, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported intent %q", ErrParse, cmd.Intent)
	}
}

// summarize asks the language model for a triage summary. Any failure
// degrades to the raw capped rows with a warning prefix: a degraded
// reply beats a failed turn.
func (r *Router) summarize(ctx context.Context, question, spl string, rows []splunk.Row) string {
	summary, err := r.ai.ExplainResults(ctx, question, spl, rows)
	if err != nil {
		log.Printf("[router] summarizer failed, replying with raw rows: %v", err)
		return "AI summary unavailable; showing raw results.\n\n" + FormatRows(rows)
	}
	if strings.TrimSpace(summary) == "" {
		return "No AI summary generated. Try refining the query.\n\n" + FormatRows(rows)
	}
	return summary
}

// HelpText lists the built-in commands plus any operator-defined
// queries.
func (r *Router) HelpText() string {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	sb.WriteString("/failed_logins [window] - Example: /failed_logins 30m\n")
	sb.WriteString("/errors [window] - Example: /errors 15m\n")
	sb.WriteString("/suspicious_process [window] - Example: /suspicious_process 1h\n")
	sb.WriteString("/ask <question> - Natural language security question\n")
	if r.custom.Len() > 0 {
		sb.WriteString("/q <name> [window] - Custom query, one of: ")
		sb.WriteString(strings.Join(r.custom.Names(), ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("\nYou can also send a plain text question directly.")
	return sb.String()
}

// FormatRows renders rows as one key=value line each, fields sorted for
// stable output.
func FormatRows(rows []splunk.Row) string {
	if len(rows) == 0 {
		return "(no results)"
	}
	var sb strings.Builder
	for i, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
		}
		sb.WriteString(strings.Join(parts, " "))
		if i < len(rows)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func send(notify Notify, text string) {
	if notify != nil {
		notify(text)
	}
}
