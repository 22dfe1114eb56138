// Package server exposes a backend.Interpreter over HTTP with the same wire
// format as the interpretation service the voice session talks to.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/goshawk/voice-agent/pkg/backend"
	"github.com/goshawk/voice-agent/pkg/interpret"
)

const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	maxBodyBytes      = 1 << 20
)

type Server struct {
	e           *echo.Echo
	interpreter backend.Interpreter
	logger      *slog.Logger
}

type Opt func(*Server)

func WithLogger(logger *slog.Logger) Opt {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(interpreter backend.Interpreter, opts ...Opt) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())

	s := &Server{
		e:           e,
		interpreter: interpreter,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Interpret an utterance
	e.POST(interpret.DefaultPath, s.processVoice)

	// Health check endpoint
	e.GET("/api/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := http.Server{
		Handler: s.e,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcReply struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      any               `json:"id"`
	Result  *interpret.Result `json:"result,omitempty"`
	Error   *rpcError         `json:"error,omitempty"`
}

// processVoice accepts both a plain {"text_input": ...} body and a JSON-RPC
// call envelope. Interpretation failures are reported in the body with a 200
// status.
func (s *Server) processVoice(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, &interpret.Result{Error: "Cannot read request body"})
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return c.JSON(http.StatusBadRequest, &interpret.Result{Error: "Invalid JSON body"})
	}

	if envelope.JSONRPC == "" {
		var req interpret.Request
		if err := json.Unmarshal(body, &req); err != nil {
			return c.JSON(http.StatusBadRequest, &interpret.Result{Error: "Invalid JSON body"})
		}
		return c.JSON(http.StatusOK, s.process(c.Request().Context(), req.TextInput))
	}

	reply := rpcReply{JSONRPC: "2.0", ID: envelope.ID}
	var req interpret.Request
	if len(envelope.Params) == 0 {
		reply.Error = &rpcError{Code: rpcInvalidRequest, Message: "Missing params"}
		return c.JSON(http.StatusOK, reply)
	}
	if err := json.Unmarshal(envelope.Params, &req); err != nil {
		reply.Error = &rpcError{Code: rpcParseError, Message: "Invalid params"}
		return c.JSON(http.StatusOK, reply)
	}
	reply.Result = s.process(c.Request().Context(), req.TextInput)
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) process(ctx context.Context, text string) *interpret.Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return &interpret.Result{Error: "No input provided"}
	}

	prompt, code, err := s.interpreter.Interpret(ctx, text)
	if err != nil {
		s.logger.Error("Error processing voice input", "text", text, "error", err)
		return &interpret.Result{Error: err.Error()}
	}

	s.logger.Debug("Processed voice input", "text", text, "prompt", prompt, "code", code)
	return &interpret.Result{Success: true, Prompt: prompt, ActionCode: code}
}
