package backend

import (
	"fmt"
	"strings"

	"github.com/goshawk/voice-agent/pkg/actions"
)

var availableActions = []struct {
	name, usage, description string
}{
	{actions.OpenMainMenu, "openMainMenu()", "open the main menu"},
	{actions.ActivateDebugMode, "activateDebugMode()", "turn on debug mode for the current page"},
	{actions.OpenApp, `openApp("<app name>")`, "open an application by its display name"},
	{actions.OpenSettings, "openSettings()", "open the Settings application"},
}

func commandPrompt(text string) string {
	return fmt.Sprintf(`You are an assistant that converts natural language commands into application actions.
Convert the following user input into a structured command:

%s

Respond with a JSON object containing:
- action: the type of action to perform (e.g. "open_app", "toggle_debug", "open_menu")
- target: the specific target for the action (e.g. app name, menu item)
- parameters: any additional parameters needed`, text)
}

func codePrompt(command string) string {
	var b strings.Builder
	for _, a := range availableActions {
		fmt.Fprintf(&b, "- %s: %s\n", a.usage, a.description)
	}

	return fmt.Sprintf(`Generate code that executes the following command:

%s

Only these functions are available:
%s
Use one call per statement. Arguments must be string literals. Do not use
variables, loops, conditions or any other function.
Return only the code without any explanation or markdown formatting.`, command, b.String())
}
