package stratum

import "encoding/json"

// Stratum v1 method names.
const (
	methodSubscribe     = "mining.subscribe"
	methodAuthorize     = "mining.authorize"
	methodNotify        = "mining.notify"
	methodSetDifficulty = "mining.set_difficulty"
	methodSubmit        = "mining.submit"
)

// rpcRequest is a client->server or server->client request object.
type rpcRequest struct {
	ID     *uint32       `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// rpcError is the Stratum error triple [code, message, data].
type rpcError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *rpcError) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > 0 {
		if code, ok := raw[0].(float64); ok {
			e.Code = int(code)
		}
	}
	if len(raw) > 1 {
		if msg, ok := raw[1].(string); ok {
			e.Message = msg
		}
	}
	if len(raw) > 2 {
		e.Data = raw[2]
	}
	return nil
}

// rpcResponse is a server->client response object.
type rpcResponse struct {
	ID     uint32          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// line classifies one inbound JSON line by the shapes §4.1 describes.
type line struct {
	ID     *uint32         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// isNotification reports whether the line carries a "method" field, the
// sole classification signal §4.1 specifies for server->client
// notifications.
func (l line) isNotification() bool {
	return l.Method != ""
}

// isResponse reports whether the line looks like a response to a
// previously issued request: no method, and a result or error field.
func (l line) isResponse() bool {
	return l.Method == "" && (l.Result != nil || l.Error != nil) && l.ID != nil
}
