package transcribe

import (
	"slices"
	"strings"
	"sync"
)

// transcript joins the text of every item heard since the last reset. The
// realtime service splits speech into items at each pause, so a single
// utterance can span several of them.
type transcript struct {
	mu sync.Mutex

	// Completed items not yet reset.
	done []string
	// Open items in the order they were first heard.
	order []string
	text  map[string]string
	// Bytes of an open item's text that were already reset.
	skip map[string]int

	last string
}

func newTranscript() *transcript {
	return &transcript{
		text: map[string]string{},
		skip: map[string]int{},
	}
}

// delta appends to an item. It returns the snapshot and whether it changed.
func (t *transcript) delta(itemID, delta string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.text[itemID]; !ok {
		t.order = append(t.order, itemID)
	}
	t.text[itemID] += delta
	return t.changed()
}

// complete closes an item with its final text. The final text replaces the
// streamed deltas unless part of the item was already reset.
func (t *transcript) complete(itemID, final string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	text := t.text[itemID]
	if skip := t.skip[itemID]; skip > 0 {
		text = text[skip:]
	} else if final != "" {
		text = final
	}
	if text = strings.TrimSpace(text); text != "" {
		t.done = append(t.done, text)
	}

	t.order = slices.DeleteFunc(t.order, func(id string) bool { return id == itemID })
	delete(t.text, itemID)
	delete(t.skip, itemID)
	return t.changed()
}

// reset drops everything heard so far. Text still arriving for open items
// starts a fresh snapshot.
func (t *transcript) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done = nil
	for id, text := range t.text {
		t.skip[id] = len(text)
	}
	t.last = ""
}

func (t *transcript) changed() (string, bool) {
	current := t.snapshot()
	if current == t.last {
		return current, false
	}
	t.last = current
	return current, true
}

func (t *transcript) snapshot() string {
	parts := slices.Clone(t.done)
	for _, id := range t.order {
		if text := strings.TrimSpace(t.text[id][t.skip[id]:]); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
