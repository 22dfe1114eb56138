package interpret

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backend(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(data, &body))

		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestInterpret_Success(t *testing.T) {
	t.Parallel()

	srv, hits := backend(t, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "open settings", body["text_input"])
		_, _ = io.WriteString(w, `{"success": true, "prompt": "Opening settings", "js_code": "actions.openApp('Settings')"}`)
	})

	c := NewClient(srv.URL + DefaultPath)
	res, err := c.Interpret(t.Context(), "  open settings ")
	require.NoError(t, err)

	assert.Equal(t, "Opening settings", res.Prompt)
	assert.Equal(t, "actions.openApp('Settings')", res.ActionCode)
	assert.False(t, res.Failed())
	assert.True(t, res.HasAction())
	assert.Equal(t, int32(1), hits.Load())
}

func TestInterpret_BackendError(t *testing.T) {
	t.Parallel()

	srv, _ := backend(t, func(w http.ResponseWriter, _ map[string]any) {
		_, _ = io.WriteString(w, `{"error": "Voice agent not configured"}`)
	})

	res, err := NewClient(srv.URL + DefaultPath).Interpret(t.Context(), "open settings")
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.False(t, res.HasAction())
	assert.Equal(t, "Voice agent not configured", res.Error)
}

func TestInterpret_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		checkFn func(t *testing.T, err error)
	}{
		{
			name:   "http status",
			status: http.StatusBadGateway,
			body:   "upstream down",
			checkFn: func(t *testing.T, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusBadGateway, te.StatusCode)
				assert.Contains(t, err.Error(), "upstream down")
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   "<html>",
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "neither prompt nor error",
			status: http.StatusOK,
			body:   `{"success": true}`,
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := backend(t, func(w http.ResponseWriter, _ map[string]any) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := NewClient(srv.URL + DefaultPath).Interpret(t.Context(), "open settings")
			require.Error(t, err)
			assert.Nil(t, res)
			tt.checkFn(t, err)
		})
	}
}

func TestInterpret_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + DefaultPath
	srv.Close()

	_, err := NewClient(url).Interpret(t.Context(), "open settings")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestInterpret_EmptyInput(t *testing.T) {
	t.Parallel()

	srv, hits := backend(t, func(http.ResponseWriter, map[string]any) {})

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := NewClient(srv.URL + DefaultPath).Interpret(t.Context(), text)
		require.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Zero(t, hits.Load())
}

func TestInterpret_ContextCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv, _ := backend(t, func(w http.ResponseWriter, _ map[string]any) {
		<-release
		_, _ = io.WriteString(w, `{"prompt": "late"}`)
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL + DefaultPath).Interpret(ctx, "open settings")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInterpret_JSONRPC(t *testing.T) {
	t.Parallel()

	t.Run("result", func(t *testing.T) {
		t.Parallel()

		srv, _ := backend(t, func(w http.ResponseWriter, body map[string]any) {
			assert.Equal(t, "2.0", body["jsonrpc"])
			assert.Equal(t, "call", body["method"])
			params, _ := body["params"].(map[string]any)
			assert.Equal(t, "open the main menu", params["text_input"])

			_, _ = io.WriteString(w, `{"jsonrpc": "2.0", "id": 1, "result": {"success": true, "prompt": "Opening menu", "js_code": "actions.openMainMenu()"}}`)
		})

		res, err := NewClient(srv.URL+DefaultPath, WithJSONRPC(true)).Interpret(t.Context(), "open the main menu")
		require.NoError(t, err)
		assert.Equal(t, "Opening menu", res.Prompt)
		assert.Equal(t, "actions.openMainMenu()", res.ActionCode)
	})

	t.Run("business error in result", func(t *testing.T) {
		t.Parallel()

		srv, _ := backend(t, func(w http.ResponseWriter, _ map[string]any) {
			_, _ = io.WriteString(w, `{"jsonrpc": "2.0", "id": 1, "result": {"error": "No input provided"}}`)
		})

		res, err := NewClient(srv.URL+DefaultPath, WithJSONRPC(true)).Interpret(t.Context(), "x")
		require.NoError(t, err)
		assert.Equal(t, "No input provided", res.Error)
	})

	t.Run("rpc error", func(t *testing.T) {
		t.Parallel()

		srv, _ := backend(t, func(w http.ResponseWriter, _ map[string]any) {
			_, _ = io.WriteString(w, `{"jsonrpc": "2.0", "id": 1, "error": {"code": 100, "message": "Odoo Session Expired", "data": {"name": "odoo.http.SessionExpiredException", "message": "Session expired"}}}`)
		})

		_, err := NewClient(srv.URL+DefaultPath, WithJSONRPC(true)).Interpret(t.Context(), "x")
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, 100, rpcErr.Code)
		assert.Equal(t, "Session expired", rpcErr.Message)
	})
}
