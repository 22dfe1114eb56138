// Package interpret is the client side of the remote interpretation backend.
// One call per Interpret, no retries.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/goshawk/voice-agent/pkg/httpclient"
)

// DefaultPath is the route the interpretation backend serves.
const DefaultPath = "/voice_agent/process_voice"

const maxResponseSize = 1 << 20

var tracer = otel.Tracer("github.com/goshawk/voice-agent/pkg/interpret")

type Client struct {
	endpoint   string
	httpClient *http.Client
	jsonrpc    bool
	logger     *slog.Logger
	seq        atomic.Uint64
}

type Opt func(*Client)

func WithHTTPClient(c *http.Client) Opt {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithJSONRPC wraps requests in a JSON-RPC 2.0 "call" envelope, as expected
// by Odoo `type='json'` routes.
func WithJSONRPC(enabled bool) Opt {
	return func(cl *Client) {
		cl.jsonrpc = enabled
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func NewClient(endpoint string, opts ...Opt) *Client {
	c := &Client{
		endpoint: endpoint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.NewHTTPClient()
	}
	return c
}

// Interpret sends text to the backend. A backend-reported error comes back
// as a Result with Error set; everything else that goes wrong is returned as
// an error. Callers treat both the same way.
func (c *Client) Interpret(ctx context.Context, text string) (res *Result, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	ctx, span := tracer.Start(ctx, "voice_agent.interpret")
	span.SetAttributes(attribute.Bool("voice_agent.jsonrpc", c.jsonrpc), attribute.Int("voice_agent.text_length", len(text)))
	defer func() {
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res.Failed():
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
	}()

	body, err := c.encode(text)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating interpretation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending interpretation request", "endpoint", c.endpoint, "jsonrpc", c.jsonrpc)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(data)))}
	}

	res, err = c.decode(data)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Interpretation settled", "failed", res.Failed(), "has_action", res.HasAction())
	return res, nil
}

func (c *Client) encode(text string) ([]byte, error) {
	var payload any = Request{TextInput: text}
	if c.jsonrpc {
		payload = rpcRequest{
			JSONRPC: "2.0",
			Method:  "call",
			Params:  Request{TextInput: text},
			ID:      c.seq.Add(1),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding interpretation request: %w", err)
	}
	return body, nil
}

func (c *Client) decode(data []byte) (*Result, error) {
	var res Result

	if c.jsonrpc {
		var envelope rpcResponse
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if envelope.Error != nil {
			msg := envelope.Error.Data.Message
			if msg == "" {
				msg = envelope.Error.Message
			}
			return nil, &RPCError{Code: envelope.Error.Code, Message: msg}
		}
		if envelope.Result == nil {
			return nil, ErrMalformedResponse
		}
		res = *envelope.Result
	} else if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if res.Error == "" && res.Prompt == "" {
		return nil, ErrMalformedResponse
	}
	return &res, nil
}
