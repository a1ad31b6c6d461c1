package router

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Intent is the fixed set of things a chat message can ask for.
type Intent string

const (
	IntentStart             Intent = "start"
	IntentHelp              Intent = "help"
	IntentFailedLogins      Intent = "failed_logins"
	IntentErrors            Intent = "errors"
	IntentSuspiciousProcess Intent = "suspicious_process"
	IntentAsk               Intent = "ask"
	IntentCustomQuery       Intent = "query"
)

// ErrParse marks command errors whose text is meant for the chat user.
var ErrParse = errors.New("cannot parse command")

var windowPattern = regexp.MustCompile(`^\d+[smhd]$`)

// ChatCommand is one parsed inbound message. It lives for a single
// request/response turn.
type ChatCommand struct {
	Raw       string
	Intent    Intent
	Window    string
	Question  string
	QueryName string
}

// defaultWindows are the per-command windows used when the message
// omits one.
var defaultWindows = map[Intent]string{
	IntentFailedLogins:      "30m",
	IntentErrors:            "15m",
	IntentSuspiciousProcess: "1h",
}

// Parse maps chat text to a ChatCommand. Slash commands map to fixed
// intents; any other non-empty text is treated as an ask. Malformed
// windows are rejected, never silently defaulted.
func Parse(text string) (ChatCommand, error) {
	cmd := ChatCommand{Raw: text}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return cmd, fmt.Errorf("%w: empty message", ErrParse)
	}

	if !strings.HasPrefix(trimmed, "/") {
		cmd.Intent = IntentAsk
		cmd.Question = trimmed
		return cmd, nil
	}

	fields := strings.Fields(trimmed)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// Telegram group commands arrive as /cmd@botname.
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	args := fields[1:]

	switch name {
	case "start":
		cmd.Intent = IntentStart
	case "help":
		cmd.Intent = IntentHelp
	case "failed_logins", "errors", "suspicious_process":
		cmd.Intent = Intent(name)
		window, err := parseWindow(args, defaultWindows[cmd.Intent])
		if err != nil {
			return cmd, err
		}
		cmd.Window = window
	case "ask":
		cmd.Intent = IntentAsk
		cmd.Question = strings.TrimSpace(strings.Join(args, " "))
		if cmd.Question == "" {
			return cmd, fmt.Errorf("%w: usage: /ask <question>", ErrParse)
		}
	case "q":
		cmd.Intent = IntentCustomQuery
		if len(args) == 0 {
			return cmd, fmt.Errorf("%w: usage: /q <name> [window]", ErrParse)
		}
		cmd.QueryName = strings.ToLower(args[0])
		window, err := parseWindow(args[1:], "")
		if err != nil {
			return cmd, err
		}
		cmd.Window = window
	default:
		return cmd, fmt.Errorf("%w: unknown command /%s (try /help)", ErrParse, name)
	}

	return cmd, nil
}

func parseWindow(args []string, fallback string) (string, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	value := strings.ToLower(strings.TrimSpace(args[0]))
	if !windowPattern.MatchString(value) {
		return "", fmt.Errorf("%w: invalid time window %q (expected forms like 30m, 15m, 1h, 2d)", ErrParse, args[0])
	}
	return value, nil
}
