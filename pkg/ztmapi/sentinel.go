package ztmapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel is the string the operator API returns in place of a result when the
// requested stop or feed has no data for the given parameters.
const Sentinel = "Błędna metoda lub parametry wywołania"

var ErrInvalidParameters = errors.New("invalid method or parameters")

// IsSentinel reports whether a raw result (or a published snapshot) is the sentinel.
func IsSentinel(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return false
	}

	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		return false
	}
	return message == Sentinel
}

// checkResult turns string results into errors: the sentinel into ErrInvalidParameters,
// anything else into a generic API error.
func checkResult(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return nil
	}
	if IsSentinel(trimmed) {
		return ErrInvalidParameters
	}

	var message string
	if err := json.Unmarshal(trimmed, &message); err != nil {
		return fmt.Errorf("unexpected result: %w", err)
	}
	return fmt.Errorf("api error: %s", message)
}
