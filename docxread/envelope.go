package docxread

import (
	"bytes"
	"encoding/json"
)

// Status values of an Envelope.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the JSON shape returned to clients:
//
//	{"status":"success","extracted_text":"..."}
//	{"status":"error","message":"..."}
type Envelope struct {
	Status        string  `json:"status"`
	ExtractedText *string `json:"extracted_text,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Success wraps extracted text. An empty text is still reported.
func Success(text string) Envelope {
	return Envelope{Status: StatusSuccess, ExtractedText: &text}
}

// Failure wraps an error message.
func Failure(msg string) Envelope {
	return Envelope{Status: StatusError, Message: msg}
}

// OK reports whether the envelope carries a success.
func (e Envelope) OK() bool { return e.Status == StatusSuccess }

// Text returns the extracted text, or "" for a failure.
func (e Envelope) Text() string {
	if e.ExtractedText == nil {
		return ""
	}
	return *e.ExtractedText
}

// Encode encodes the envelope without HTML escaping, so that
// extracted text containing <, > or & travels unchanged.
func (e Envelope) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
