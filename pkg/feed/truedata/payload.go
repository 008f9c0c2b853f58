package truedata

// subscribeRequest is the frame sent to register live symbols on the push
// socket. The server echoes a symbollist response which we treat as a
// heartbeat-equivalent control frame.
type subscribeRequest struct {
	Method  string   `json:"method"`
	Symbols []string `json:"symbols"`
}

// unsubscribeRequest removes symbols from the live session.
type unsubscribeRequest struct {
	Method  string   `json:"method"`
	Symbols []string `json:"symbols"`
}

// controlEnvelope is the minimal shape shared by server control frames. Tick
// frames carry a symbol instead and fall through classification untouched.
type controlEnvelope struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// tokenResponse is returned by the REST auth endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

const (
	methodAddSymbol    = "addsymbol"
	methodRemoveSymbol = "removesymbol"

	msgHeartbeat  = "HeartBeat"
	msgSymbolList = "symbols added"
)
