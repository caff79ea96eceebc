package dto

import (
	"bytes"
	"encoding/json"

	"kiosk/internal/scanner"
)

// ScanEvent is the message pushed to websocket clients, one per emitted code.
type ScanEvent struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// NewScanEvent converts a scanner result to its wire shape.
func NewScanEvent(result scanner.ScanResult) ScanEvent {
	return ScanEvent{Type: result.Type.String(), Code: result.Code}
}

// Encode returns the JSON text of the event. The code is kept verbatim, so
// characters such as & or < are not HTML-escaped.
func (e ScanEvent) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
