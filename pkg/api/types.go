package api

// Request/response types for the read-only settlement mirror.

// FilledAmountsRequest is a batched filled-amount lookup by order UID.
type FilledAmountsRequest struct {
	UIDs []string `json:"uids"` // 0x-prefixed 56-byte UIDs
}

// FilledAmountsResponse carries amounts as decimal strings, aligned with the
// requested UIDs. Invalidated orders report the max-uint256 sentinel.
type FilledAmountsResponse struct {
	Amounts []string `json:"amounts"`
}

// FilledAmountResponse is the single-order variant.
type FilledAmountResponse struct {
	UID       string `json:"uid"`
	Amount    string `json:"amount"`
	PreSigned bool   `json:"preSigned"`
}

// DomainResponse describes the typed-data domain orders must be signed for.
type DomainResponse struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EventMessage wraps an audit event for websocket subscribers.
type EventMessage struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}
