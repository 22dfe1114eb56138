package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRealtime struct {
	// reply is sent once the client commits its audio buffer.
	reply []map[string]any

	mu       sync.Mutex
	appended int
	types    []string
	auth     string
}

func (f *fakeRealtime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.auth = r.Header.Get("Authorization")
	f.mu.Unlock()

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var event struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(msg, &event) != nil {
			continue
		}

		f.mu.Lock()
		f.types = append(f.types, event.Type)
		if event.Type == "input_audio_buffer.append" {
			f.appended++
		}
		f.mu.Unlock()

		if event.Type == "input_audio_buffer.commit" {
			for _, e := range f.reply {
				if err := conn.WriteJSON(e); err != nil {
					return
				}
			}
		}
	}
}

func (f *fakeRealtime) snapshot() (appended int, types []string, auth string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appended, append([]string(nil), f.types...), f.auth
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func bytesSource(n int) Source {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(make([]byte, n))), nil
	}
}

type recorder struct {
	mu          sync.Mutex
	transcripts []string
	ended       chan error
}

func newRecorder() *recorder {
	return &recorder{ended: make(chan error, 1)}
}

func (r *recorder) onTranscript(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, s)
}

func (r *recorder) onEnd(err error) { r.ended <- err }

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transcripts...)
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	assert.False(t, New("").Available())
	assert.False(t, New("key").Available())
	assert.False(t, New("", WithSource(bytesSource(1))).Available())
	assert.True(t, New("key", WithSource(bytesSource(1))).Available())
}

func TestStartNotConfigured(t *testing.T) {
	t.Parallel()

	err := New("").Start(t.Context(), nil, nil)
	require.Error(t, err)
}

func TestStreamsCumulativeTranscript(t *testing.T) {
	t.Parallel()

	fake := &fakeRealtime{reply: []map[string]any{
		{"type": "input_audio_buffer.committed", "item_id": "item_1"},
		{"type": "conversation.item.input_audio_transcription.delta", "item_id": "item_1", "delta": "open"},
		{"type": "conversation.item.input_audio_transcription.delta", "item_id": "item_1", "delta": " the settings"},
		{"type": "conversation.item.input_audio_transcription.completed", "item_id": "item_1", "transcript": "Open the settings."},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr := New("sk-test", WithURL(wsURL(srv)), WithSource(bytesSource(chunkSize*2+10)))
	rec := newRecorder()
	require.NoError(t, tr.Start(t.Context(), rec.onTranscript, rec.onEnd))
	assert.ErrorIs(t, tr.Start(t.Context(), rec.onTranscript, rec.onEnd), ErrAlreadyRunning)

	select {
	case err := <-rec.ended:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}

	assert.Equal(t, []string{"open", "open the settings", "Open the settings."}, rec.all())
	assert.Eventually(t, func() bool { return !tr.IsRunning() }, time.Second, time.Millisecond)

	appended, types, auth := fake.snapshot()
	assert.Equal(t, 3, appended)
	assert.Equal(t, "transcription_session.update", types[0])
	assert.Equal(t, "input_audio_buffer.commit", types[len(types)-1])
	assert.Equal(t, "Bearer sk-test", auth)
}

func TestTranscriptSpansItems(t *testing.T) {
	t.Parallel()

	// Server VAD splits "open ... settings" into two items at the pause.
	fake := &fakeRealtime{reply: []map[string]any{
		{"type": "input_audio_buffer.committed", "item_id": "a"},
		{"type": "conversation.item.input_audio_transcription.delta", "item_id": "a", "delta": "open"},
		{"type": "conversation.item.input_audio_transcription.completed", "item_id": "a", "transcript": "open"},
		{"type": "input_audio_buffer.committed", "item_id": "b"},
		{"type": "conversation.item.input_audio_transcription.delta", "item_id": "b", "delta": "settings"},
		{"type": "conversation.item.input_audio_transcription.completed", "item_id": "b", "transcript": "settings"},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr := New("sk-test", WithURL(wsURL(srv)), WithSource(bytesSource(chunkSize)))
	rec := newRecorder()
	require.NoError(t, tr.Start(t.Context(), rec.onTranscript, rec.onEnd))

	select {
	case err := <-rec.ended:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}

	assert.Equal(t, []string{"open", "open settings"}, rec.all())
}

func TestTranscriptReset(t *testing.T) {
	t.Parallel()

	tr := newTranscript()
	snap, ok := tr.delta("a", "open")
	assert.True(t, ok)
	assert.Equal(t, "open", snap)

	snap, ok = tr.complete("a", "Open")
	assert.True(t, ok)
	assert.Equal(t, "Open", snap)

	snap, ok = tr.delta("b", "settings")
	assert.True(t, ok)
	assert.Equal(t, "Open settings", snap)

	tr.reset()

	// Only text heard after the reset is reported.
	snap, ok = tr.delta("b", " now")
	assert.True(t, ok)
	assert.Equal(t, "now", snap)

	snap, ok = tr.complete("b", "settings now")
	assert.False(t, ok)
	assert.Equal(t, "now", snap)

	snap, ok = tr.delta("c", "the menu")
	assert.True(t, ok)
	assert.Equal(t, "now the menu", snap)
}

func TestTranscriptIgnoresUnchangedSnapshots(t *testing.T) {
	t.Parallel()

	tr := newTranscript()
	_, ok := tr.delta("a", "open")
	assert.True(t, ok)

	_, ok = tr.delta("a", " ")
	assert.False(t, ok)

	_, ok = tr.complete("a", "")
	assert.False(t, ok)

	snap, ok := tr.complete("missing", "")
	assert.False(t, ok)
	assert.Equal(t, "open", snap)
}

func TestResetTranscriptWithoutStream(t *testing.T) {
	t.Parallel()

	New("sk-test", WithSource(bytesSource(1))).ResetTranscript()
}

func TestEmptyCommitEndsStream(t *testing.T) {
	t.Parallel()

	fake := &fakeRealtime{reply: []map[string]any{
		{"type": "error", "error": map[string]string{"code": "input_audio_buffer_commit_empty", "message": "buffer too small"}},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr := New("sk-test", WithURL(wsURL(srv)), WithSource(bytesSource(0)))
	rec := newRecorder()
	require.NoError(t, tr.Start(t.Context(), rec.onTranscript, rec.onEnd))

	select {
	case err := <-rec.ended:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}
	assert.Empty(t, rec.all())
}

func TestServerErrorEndsStream(t *testing.T) {
	t.Parallel()

	fake := &fakeRealtime{reply: []map[string]any{
		{"type": "error", "error": map[string]string{"code": "invalid_api_key", "message": "Incorrect API key"}},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr := New("sk-bad", WithURL(wsURL(srv)), WithSource(bytesSource(chunkSize)))
	rec := newRecorder()
	require.NoError(t, tr.Start(t.Context(), rec.onTranscript, rec.onEnd))

	select {
	case err := <-rec.ended:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_api_key")
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestStopSuppressesEnd(t *testing.T) {
	t.Parallel()

	// No reply to the commit, so the stream only ends through Stop.
	fake := &fakeRealtime{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr := New("sk-test", WithURL(wsURL(srv)), WithSource(bytesSource(chunkSize)))
	rec := newRecorder()
	require.NoError(t, tr.Start(t.Context(), rec.onTranscript, rec.onEnd))
	assert.True(t, tr.IsRunning())

	tr.Stop()
	tr.Stop()
	assert.False(t, tr.IsRunning())

	select {
	case err := <-rec.ended:
		t.Fatalf("onEnd called after Stop: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	// A new stream can start right away.
	require.NoError(t, tr.Start(t.Context(), rec.onTranscript, rec.onEnd))
	tr.Stop()
}

func TestStopAbortsConnect(t *testing.T) {
	t.Parallel()

	accepted := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		close(accepted)
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	tr := New("sk-test", WithURL(wsURL(srv)), WithSource(bytesSource(1)))
	started := make(chan error, 1)
	go func() { started <- tr.Start(t.Context(), nil, nil) }()

	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("handshake never reached the server")
	}

	assert.ErrorIs(t, tr.Start(t.Context(), nil, nil), ErrAlreadyRunning)
	tr.Stop()

	select {
	case err := <-started:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not abort the handshake")
	}
	assert.False(t, tr.IsRunning())
}

func TestDialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	tr := New("sk-test", WithURL(wsURL(srv)), WithSource(bytesSource(1)))
	err := tr.Start(t.Context(), nil, nil)
	require.Error(t, err)
	assert.False(t, tr.IsRunning())
}
