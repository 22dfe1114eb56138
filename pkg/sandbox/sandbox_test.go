package sandbox

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goshawk/voice-agent/pkg/actions"
	"github.com/goshawk/voice-agent/pkg/notify"
)

type recorded struct {
	name string
	args []string
}

func testRegistry(t *testing.T, calls *[]recorded) *actions.Registry {
	t.Helper()

	record := func(name string) func(context.Context, []string) {
		return func(_ context.Context, args []string) {
			*calls = append(*calls, recorded{name: name, args: args})
		}
	}

	r, err := actions.NewRegistry(
		&actions.Action{Name: "openMainMenu", Aliases: []string{"open_menu"}, Invoke: record("openMainMenu")},
		&actions.Action{Name: "openApp", Aliases: []string{"open_app"}, TakesArg: true, Invoke: record("openApp")},
		&actions.Action{Name: "openSettings", Invoke: record("openSettings")},
		&actions.Action{Name: "explode", Invoke: func(context.Context, []string) { panic("kaboom") }},
	)
	require.NoError(t, err)
	return r
}

func TestRun_Allowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		code     string
		expected []recorded
	}{
		{
			name:     "single call",
			code:     `actions.openApp('Settings')`,
			expected: []recorded{{"openApp", []string{"Settings"}}},
		},
		{
			name:     "several statements",
			code:     "actions.openMainMenu();\nactions.openApp(\"Sales\");",
			expected: []recorded{{"openMainMenu", []string{}}, {"openApp", []string{"Sales"}}},
		},
		{
			name:     "bare action name",
			code:     `openSettings()`,
			expected: []recorded{{"openSettings", []string{}}},
		},
		{
			name:     "alias",
			code:     `actions.open_app('CRM')`,
			expected: []recorded{{"openApp", []string{"CRM"}}},
		},
		{
			name:     "function wrapper with directive",
			code:     `(function() { "use strict"; actions.openSettings(); })();`,
			expected: []recorded{{"openSettings", []string{}}},
		},
		{
			name:     "arrow wrapper",
			code:     `(() => actions.openMainMenu())()`,
			expected: []recorded{{"openMainMenu", []string{}}},
		},
		{
			name:     "markdown fence",
			code:     "```javascript\nactions.openMainMenu()\n```",
			expected: []recorded{{"openMainMenu", []string{}}},
		},
		{
			name:     "location accessor",
			code:     `actions.openApp(location.href)`,
			expected: []recorded{{"openApp", []string{"http://shell.test/odoo"}}},
		},
		{
			name:     "structured descriptor",
			code:     `{"action": "openApp", "args": ["Inventory"]}`,
			expected: []recorded{{"openApp", []string{"Inventory"}}},
		},
		{
			name:     "structured descriptor list with target",
			code:     `[{"action": "open_menu"}, {"action": "open_app", "target": "Sales"}]`,
			expected: []recorded{{"openMainMenu", []string{}}, {"openApp", []string{"Sales"}}},
		},
		{
			name:     "empty",
			code:     "   ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls []recorded
			s := New(testRegistry(t, &calls), WithLocation(func() string { return "http://shell.test/odoo" }))

			err := s.Run(t.Context(), tt.code)
			require.NoError(t, err)

			for i := range calls {
				if calls[i].args == nil {
					calls[i].args = []string{}
				}
			}
			assert.Equal(t, tt.expected, calls)
		})
	}
}

func TestRun_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
	}{
		{"throw", `throw new Error('x')`},
		{"dom access", `document.querySelector('.o_menu_toggle').click()`},
		{"assignment", `window.location.href = 'http://evil.test'`},
		{"loop", `while (true) {}`},
		{"eval", `eval("actions.openMainMenu()")`},
		{"computed argument", `actions.openApp('Se' + 'ttings')`},
		{"foreign argument", `actions.openApp(document.title)`},
		{"missing argument", `actions.openApp()`},
		{"extra argument", `actions.openMainMenu('now')`},
		{"other object", `services.actions.openApp('x')`},
		{"variable", `var x = 1`},
		{"syntax error", `actions.openApp(`},
		{"nested wrapper", `(() => { (() => actions.openMainMenu())() })()`},
		{"wrapper with params", `(function(a) { actions.openMainMenu() })()`},
		{"too many calls", strings.Repeat("actions.openMainMenu();", MaxCalls+1)},
		{"side effect before rejection", `actions.openMainMenu(); throw new Error('x')`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls []recorded
			s := New(testRegistry(t, &calls))

			err := s.Run(t.Context(), tt.code)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrExecutionFailed)

			var execErr *ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Empty(t, calls, "nothing runs when the snippet is rejected")
		})
	}
}

func TestRun_UnknownAction(t *testing.T) {
	t.Parallel()

	var calls []recorded
	rec := notify.NewRecorder(nil)
	s := New(testRegistry(t, &calls), WithNotifier(rec))

	err := s.Run(t.Context(), `actions.launchRocket(); actions.openSettings()`)
	require.NoError(t, err)

	assert.Equal(t, []notify.Notification{{Level: notify.LevelWarning, Message: `Action "launchRocket" not found`}}, rec.All())
	require.Len(t, calls, 1)
	assert.Equal(t, "openSettings", calls[0].name)
}

func TestRun_PanicIsContained(t *testing.T) {
	t.Parallel()

	var calls []recorded
	s := New(testRegistry(t, &calls))

	err := s.Run(t.Context(), `actions.explode(); actions.openSettings()`)
	require.ErrorIs(t, err, ErrExecutionFailed)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Empty(t, calls)

	// The sandbox keeps working afterwards.
	require.NoError(t, s.Run(t.Context(), `actions.openSettings()`))
	assert.Len(t, calls, 1)
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	var calls []recorded
	s := New(testRegistry(t, &calls))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := s.Run(ctx, `actions.openSettings()`)
	require.ErrorIs(t, err, ErrExecutionFailed)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"actions.openMainMenu()", "actions.openMainMenu()"},
		{"```js\nactions.openMainMenu()\n```", "actions.openMainMenu()"},
		{"```\nactions.openMainMenu()\n```", "actions.openMainMenu()"},
		{"```actions.openMainMenu()```", "actions.openMainMenu()"},
		{"```js\nactions.openMainMenu();\nactions.openSettings()\n```", "actions.openMainMenu();\nactions.openSettings()"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, stripFence(tt.in))
		})
	}
}
