package interpret

// Request is the body sent to the interpretation backend.
type Request struct {
	TextInput string `json:"text_input"`
}

// Result is the backend's answer. Exactly one of Error or Prompt is set on a
// well-formed response; ActionCode only matters when Error is empty.
type Result struct {
	Success    bool   `json:"success,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	ActionCode string `json:"js_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the backend reported a business error.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// HasAction reports whether there is action code to execute.
func (r *Result) HasAction() bool {
	return r.Error == "" && r.ActionCode != ""
}

type rpcRequest struct {
	JSONRPC string  `json:"jsonrpc"`
	Method  string  `json:"method"`
	Params  Request `json:"params"`
	ID      uint64  `json:"id"`
}

type rpcResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id,omitempty"`
	Result  *Result       `json:"result,omitempty"`
	Error   *RPCErrorBody `json:"error,omitempty"`
}

// RPCErrorBody is the error member of a JSON-RPC 2.0 response. Odoo puts the
// human readable reason in data.message.
type RPCErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"data,omitzero"`
}
