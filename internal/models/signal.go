// Package models defines the data types shared across the recorder.
package models

import "fmt"

// SignalRecord is one persisted trading alert. Time holds the normalized
// local wall-clock time, never the raw UTC string from the webhook.
type SignalRecord struct {
	Symbol string  `json:"symbol" csv:"symbol" validate:"required"`
	Event  string  `json:"event" csv:"event" validate:"required"`
	Price  float64 `json:"price" csv:"price"`
	Time   string  `json:"time" csv:"time" validate:"required"`
}

// String returns a compact single-line representation.
func (r SignalRecord) String() string {
	return fmt.Sprintf("%s %s @ %g (%s)", r.Symbol, r.Event, r.Price, r.Time)
}

// WebhookPayload is the inbound alert body.
// Price is a pointer so a missing price is distinguishable from 0.
type WebhookPayload struct {
	Symbol string   `json:"symbol" validate:"required"`
	Event  string   `json:"event" validate:"required"`
	Price  *float64 `json:"price" validate:"required"`
	Time   string   `json:"time" validate:"required"`
}
