package observability

// EventEnvelope frames every asynchronous event the messaging service
// publishes to the broker (websocket lifecycle, delivery activity) so
// consumers can route on event_type without decoding the payload.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders carries request correlation into the broker. The keys
// mirror what the gateway stamps on inbound HTTP traffic, so an event
// can be joined back to the request that caused it.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
