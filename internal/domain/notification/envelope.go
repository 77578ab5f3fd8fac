package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload wraps every DecodeRecord failure. Callers turn it into
// a ReasonInvalidPayload skip.
var ErrInvalidPayload = errors.New("invalid payload")

// DecodeRecord unmarshals a database-webhook payload into v. Both the
// {"record": {...}} envelope and a bare row object are accepted.
func DecodeRecord(data []byte, v any) error {
	var envelope struct {
		Record json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	payload := data
	if len(envelope.Record) > 0 && !bytes.Equal(bytes.TrimSpace(envelope.Record), []byte("null")) {
		payload = envelope.Record
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: record: %v", ErrInvalidPayload, err)
	}
	return nil
}
