package license

import (
	"bytes"
	"encoding/json"
)

// Status values reported by the licensing server.
const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
	StatusExpired = "expired"
)

// Details is the last server answer for a license, kept verbatim. Bodies that
// are not JSON decode to JSON null.
type Details json.RawMessage

var nullDetails = Details("null")

// DecodeDetails turns a response body into Details.
func DecodeDetails(body []byte) Details {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nullDetails
	}
	return Details(bytes.Clone(body))
}

// Status returns the "license" field when the details are a JSON object
// whose license is a string, and "" otherwise.
func (d Details) Status() string {
	if len(d) == 0 {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(d, &obj); err != nil || obj == nil {
		return ""
	}
	var status string
	if err := json.Unmarshal(obj["license"], &status); err != nil {
		return ""
	}
	return status
}

// IsValid reports whether the server last called the license valid.
func (d Details) IsValid() bool {
	return d.Status() == StatusValid
}

// MarshalJSON implements json.Marshaler.
func (d Details) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Details) UnmarshalJSON(data []byte) error {
	*d = Details(bytes.Clone(data))
	return nil
}
