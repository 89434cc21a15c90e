package host

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"golang.org/x/text/language"
)

// Request is the input of one hook invocation: the submitted form, the query
// string and the acting user. A hook may claim the response by calling
// SendJSON, after which no further hooks run.
type Request struct {
	Form     url.Values
	Query    url.Values
	User     string
	Language language.Tag

	output     []byte
	terminated bool
}

// NewRequest returns a request for user with the given form and query values.
// Nil values are replaced with empty ones.
func NewRequest(user string, form, query url.Values) *Request {
	if form == nil {
		form = url.Values{}
	}
	if query == nil {
		query = url.Values{}
	}
	return &Request{
		Form:     form,
		Query:    query,
		User:     user,
		Language: language.English,
	}
}

// Value returns the named value from the form, falling back to the query.
func (r *Request) Value(name string) string {
	if r.Form.Has(name) {
		return r.Form.Get(name)
	}
	return r.Query.Get(name)
}

// PostValue returns the named form value only.
func (r *Request) PostValue(name string) string {
	return r.Form.Get(name)
}

// PostFieldNames returns the submitted form field names in sorted order.
func (r *Request) PostFieldNames() []string {
	names := make([]string, 0, len(r.Form))
	for name := range r.Form {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SendJSON encodes v as the whole output of the request and terminates it.
func (r *Request) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	r.output = data
	r.terminated = true
	return nil
}

// Terminated reports whether a hook has claimed the response.
func (r *Request) Terminated() bool {
	return r.terminated
}

// Output returns the JSON written by SendJSON.
func (r *Request) Output() []byte {
	return r.output
}
