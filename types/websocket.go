package types

const (
	TypeWebsocketPing   = "ping"
	TypeWebsocketPong   = "pong"
	TypeWebsocketIngest = "ingest"
	TypeWebsocketStatus = "status"
	TypeWebsocketError  = "error"
)

type WebsocketRequest struct {
	Type    string               `json:"type"`
	Payload StoreDocumentRequest `json:"payload,omitempty"`
}

type WebsocketResponse struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
