package backend

import (
	"context"
	"encoding/json"
	"strings"
)

// Keyword is a deterministic interpreter for development and tests.
type Keyword struct{}

type command struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

var appVerbs = []string{"open ", "launch ", "go to ", "show "}

func (Keyword) Interpret(_ context.Context, text string) (string, string, error) {
	lower := strings.ToLower(strings.TrimSpace(text))

	var cmd command
	var code string
	switch {
	case strings.Contains(lower, "debug"):
		cmd = command{Action: "toggle_debug"}
		code = "activateDebugMode()"
	case strings.Contains(lower, "setting"):
		cmd = command{Action: "open_app", Target: "Settings"}
		code = "openSettings()"
	case strings.Contains(lower, "menu"):
		cmd = command{Action: "open_menu"}
		code = "openMainMenu()"
	default:
		if app, ok := appName(text); ok {
			cmd = command{Action: "open_app", Target: app}
			quoted, _ := json.Marshal(app)
			code = "openApp(" + string(quoted) + ")"
		} else {
			cmd = command{Action: "none"}
		}
	}

	prompt, err := json.Marshal(cmd)
	if err != nil {
		return "", "", err
	}
	return string(prompt), code, nil
}

// appName extracts "Sales" from "open the sales app".
func appName(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, verb := range appVerbs {
		idx := strings.Index(lower, verb)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(text[idx+len(verb):])
		if strings.HasPrefix(strings.ToLower(rest), "the ") {
			rest = rest[len("the "):]
		}
		rest = strings.TrimRight(rest, ".!?")
		if strings.HasSuffix(strings.ToLower(rest), " app") {
			rest = rest[:len(rest)-len(" app")]
		}
		rest = strings.TrimSpace(rest)
		if rest != "" {
			return rest, true
		}
	}
	return "", false
}
