package ui

import "encoding/json"

// Push message types sent from the core to presentation clients
const (
	MsgBLEConnection  = "bleConnection"
	MsgSensorData     = "sensorData"
	MsgUpdateStats    = "updateStats"
	MsgStorageStats   = "storageStats"
	MsgTimeRangeStats = "timeRangeStats"
	MsgStatus         = "status"
)

// Request types accepted from presentation clients
const (
	ReqConnect = "connect"
	ReqLog     = "log"
)

// Message is the push envelope; Payload shape depends on Type
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Request is a client-to-core message. Text is only meaningful for log
// requests.
type Request struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// DecodeRequest parses a raw client frame
func DecodeRequest(raw []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(raw, &req)
	return req, err
}
