package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  Message
		role MessageRole
	}{
		{"user", UserMessage("open settings"), MessageRoleUser},
		{"assistant", AssistantMessage("Opening settings"), MessageRoleAssistant},
		{"system", SystemMessage("Error: boom"), MessageRoleSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.role, tt.msg.Role)
			assert.NotEmpty(t, tt.msg.ID)
			assert.False(t, tt.msg.CreatedAt.IsZero())
		})
	}
}

func TestMessageIDsAreOrdered(t *testing.T) {
	t.Parallel()

	var prev string
	for range 100 {
		m := UserMessage("x")
		assert.Greater(t, m.ID, prev)
		prev = m.ID
	}
}

func TestLog(t *testing.T) {
	t.Parallel()

	log := NewLog()
	_, ok := log.Last()
	assert.False(t, ok)

	log.Append(UserMessage("one"))
	log.Append(AssistantMessage("two"))

	require.Equal(t, 2, log.Len())
	all := log.All()
	assert.Equal(t, "one", all[0].Content)
	assert.Equal(t, "two", all[1].Content)

	last, ok := log.Last()
	require.True(t, ok)
	assert.Equal(t, MessageRoleAssistant, last.Role)

	// The snapshot is detached from the log.
	all[0].Content = "changed"
	assert.Equal(t, "one", log.All()[0].Content)
}

func TestLogConcurrentReads(t *testing.T) {
	t.Parallel()

	log := NewLog()
	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 50 {
				_ = log.All()
			}
		})
	}
	for range 50 {
		log.Append(UserMessage("x"))
	}
	wg.Wait()

	assert.Equal(t, 50, log.Len())
}
