package models

import "encoding/json"

// Envelope is the response wrapper shared by REST responses and push frames.
//
// A non-zero Code signals an application-level error; Data may then be null or an error-shaped body.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HasData reports whether Data holds something other than JSON null.
func (e Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}
