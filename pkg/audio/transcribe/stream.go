package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/gorilla/websocket"
)

// serverEvent represents events from the OpenAI Realtime API.
type serverEvent struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const (
	eventDelta     = "conversation.item.input_audio_transcription.delta"
	eventCompleted = "conversation.item.input_audio_transcription.completed"
	eventCommitted = "input_audio_buffer.committed"
	eventError     = "error"

	errCommitEmpty = "input_audio_buffer_commit_empty"
)

type stream struct {
	conn         *websocket.Conn
	audio        io.ReadCloser
	cancel       context.CancelFunc
	pace         bool
	logger       *slog.Logger
	onTranscript func(string)

	writeMu sync.Mutex
	closing atomic.Bool
	stopped atomic.Bool
	eof     atomic.Bool

	closeOnce sync.Once
	idleOnce  sync.Once
	idle      chan struct{}

	transcript *transcript

	// Read loop only.
	pendingItems map[string]bool
	finalCommit  bool
}

func (s *stream) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// pump sends audio until the source is exhausted, commits the tail and waits
// for the last transcription before closing the connection.
func (s *stream) pump(ctx context.Context) {
	defer s.audio.Close()

	var sent int
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(s.audio, buf)
		if n > 0 {
			sent += n
			if werr := s.write(map[string]string{
				"type":  "input_audio_buffer.append",
				"audio": base64.StdEncoding.EncodeToString(buf[:n]),
			}); werr != nil {
				s.logger.Debug("Audio write failed", "error", werr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Warn("Audio source failed", "error", err)
			}
			break
		}
		if s.pace {
			select {
			case <-ctx.Done():
				return
			case <-time.After(chunkDuration):
			}
		}
	}

	s.eof.Store(true)
	s.logger.Debug("Audio source exhausted", "sent", units.HumanSize(float64(sent)))
	if err := s.write(map[string]string{"type": "input_audio_buffer.commit"}); err != nil {
		return
	}

	select {
	case <-s.idle:
	case <-time.After(drainTimeout):
		s.logger.Debug("Timed out waiting for the final transcript")
	case <-ctx.Done():
		return
	}
	s.close()
}

func (s *stream) read(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if s.closing.Load() || ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read transcription event: %w", err)
		}

		var event serverEvent
		if json.Unmarshal(msg, &event) != nil {
			continue
		}

		switch event.Type {
		case eventCommitted:
			s.pendingItems[event.ItemID] = true
			if s.eof.Load() {
				s.finalCommit = true
			}
		case eventDelta:
			if event.Delta == "" {
				continue
			}
			s.emit(s.transcript.delta(event.ItemID, event.Delta))
		case eventCompleted:
			s.emit(s.transcript.complete(event.ItemID, event.Transcript))
			delete(s.pendingItems, event.ItemID)
			if s.finalCommit && len(s.pendingItems) == 0 {
				s.markIdle()
			}
		case eventError:
			if event.Error == nil {
				continue
			}
			if event.Error.Code == errCommitEmpty {
				if s.eof.Load() && len(s.pendingItems) == 0 {
					s.markIdle()
				}
				continue
			}
			return fmt.Errorf("transcription error %s: %s", event.Error.Code, event.Error.Message)
		}
	}
}

func (s *stream) emit(transcript string, changed bool) {
	if changed && s.onTranscript != nil {
		s.onTranscript(transcript)
	}
}

func (s *stream) markIdle() {
	s.idleOnce.Do(func() { close(s.idle) })
}

func (s *stream) isStopped() bool {
	return s.stopped.Load()
}

func (s *stream) stop() {
	s.stopped.Store(true)
	s.close()
}

// close sends a normal closure and releases the connection. Safe to call
// more than once.
func (s *stream) close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.cancel()

		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
}
