package ws

import "encoding/json"

// clientPacket is a request from the socket client.
type clientPacket struct {
	Action    string          `json:"action"`
	RequestID *int64          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// serverPacket is a reply or a pushed notification.
type serverPacket struct {
	Action    string `json:"action"`
	RequestID *int64 `json:"request_id,omitempty"`
	OK        bool   `json:"ok"`
	Code      int    `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func replyPacket(action string, requestID *int64, data any) serverPacket {
	return serverPacket{Action: action, RequestID: requestID, OK: true, Data: data}
}

func errorPacket(requestID *int64, code int, message string) serverPacket {
	return serverPacket{
		Action:    "error",
		RequestID: requestID,
		OK:        false,
		Code:      code,
		Error:     message,
	}
}

// notificationPacket wraps a fan-out event for delivery.
func notificationPacket(action string, data any) serverPacket {
	return serverPacket{Action: action, OK: true, Data: data}
}

// decodeData re-marshals an event payload into a concrete type. Payloads
// arrive either as structs (in-process bus) or as generic maps (after the
// Redis relay's JSON round trip); this handles both uniformly.
func decodeData(data any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
