package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is the fixed shape of a stored session. Anything that fails
// strict decoding into it is treated as absent by the Manager.
type Record struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Encode serializes a Record through the one canonical encoding.
func Encode(rec *Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a stored payload, rejecting unknown fields and records
// without a usable user id.
func Decode(data string) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	if rec.UserID <= 0 {
		return nil, errors.New("session record missing user id")
	}

	return &rec, nil
}
