package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/goshawk/voice-agent/pkg/chat"
	"github.com/goshawk/voice-agent/pkg/notify"
	"github.com/goshawk/voice-agent/pkg/session"
)

// Printer writes the conversation to a terminal. It is safe for concurrent
// use: session messages arrive on the session loop while the input loop
// prints prompts.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

var _ notify.Notifier = (*Printer)(nil)

func NewPrinter(out io.Writer) *Printer {
	colored := false
	if f, ok := out.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{
		out:   out,
		color: colored && os.Getenv("NO_COLOR") == "",
	}
}

func (p *Printer) paint(text string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if p.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

func (p *Printer) bold(text string) string {
	return p.paint(text, color.Bold)
}

func (p *Printer) Println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Print(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, a...)
}

// PrintWelcomeMessage prints the welcome message
func (p *Printer) PrintWelcomeMessage(appName string) {
	p.Printf("\n------- Welcome to %s! -------\n(type /help for commands, Ctrl+C to exit)\n\n", p.bold(appName))
}

func (p *Printer) PrintHelp() {
	p.Println("Commands:")
	p.Println("  /listen    start speech capture")
	p.Println("  /stop      stop speech capture")
	p.Println("  /state     show the session state")
	p.Println("  /messages  show the conversation")
	p.Println("  /exit      quit")
	p.Println("Anything else is sent as a command.")
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) {
	p.Printf("%s %s\n", p.paint("error:", color.FgRed, color.Bold), err)
}

func (p *Printer) PrintState(state session.State) {
	p.Printf("state: %s\n", p.bold(state.String()))
}

// PrintMessage prints one entry of the conversation.
func (p *Printer) PrintMessage(m chat.Message) {
	switch m.Role {
	case chat.MessageRoleUser:
		p.Printf("%s %s\n", p.paint("you:", color.FgCyan, color.Bold), m.Content)
	case chat.MessageRoleAssistant:
		p.Printf("%s %s\n", p.paint("agent:", color.FgGreen, color.Bold), p.formatCommand(m.Content))
	default:
		p.Printf("%s\n", p.paint(m.Content, color.FgRed))
	}
}

// Notify prints a toast.
func (p *Printer) Notify(level notify.Level, message string) {
	var attrs []color.Attribute
	switch level {
	case notify.LevelDanger:
		attrs = []color.Attribute{color.FgRed, color.Bold}
	case notify.LevelWarning:
		attrs = []color.Attribute{color.FgYellow, color.Bold}
	default:
		attrs = []color.Attribute{color.FgBlue, color.Bold}
	}
	p.Printf("%s %s\n", p.paint("["+string(level)+"]", attrs...), message)
}

// formatCommand renders the backend's structured command, a JSON object with
// an "action" key, as action(key: value, ...). Anything else is returned
// unchanged.
func (p *Printer) formatCommand(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "```"), "```")
	trimmed = strings.TrimSpace(trimmed)

	kv := orderedmap.New[string, any]()
	if err := json.Unmarshal([]byte(trimmed), &kv); err != nil {
		return content
	}

	action, _ := kv.Get("action")
	name, ok := action.(string)
	if !ok || name == "" {
		return content
	}
	kv.Delete("action")

	var parts []string
	for key, value := range kv.FromOldest() {
		if isEmptyJSON(value) {
			continue
		}
		parts = append(parts, p.formatJSONValue(key, value))
	}
	return fmt.Sprintf("%s(%s)", p.bold(name), strings.Join(parts, ", "))
}

func isEmptyJSON(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

func (p *Printer) formatJSONValue(key string, value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%s: %q", key, v)
	default:
		jsonBytes, _ := json.Marshal(v)
		return fmt.Sprintf("%s: %s", key, string(jsonBytes))
	}
}
