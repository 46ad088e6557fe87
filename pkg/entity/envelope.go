// Package entity holds the response schema of each reporting endpoint and
// decodes raw JSON into validated values.
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
)

// validator is implemented by every item schema.
type validator interface {
	Validate() error
}

// DecodePage extracts the data array of a report response. A body without a
// data key, or with a data value that is not an array, is malformed. An empty
// array and a null data value are both a valid, empty page.
func DecodePage(body []byte) ([]json.RawMessage, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", errs.ErrMalformedResponse, err)
	}
	data, ok := env["data"]
	if !ok {
		return nil, fmt.Errorf("%w: response has no data array", errs.ErrMalformedResponse)
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return []json.RawMessage{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: data is not an array: %v", errs.ErrMalformedResponse, err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

func decodeAll[T any, PT interface {
	*T
	validator
}](kind string, raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var item T
		dec := json.NewDecoder(bytes.NewReader(r))
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("%w: %s item %d: %v", errs.ErrMalformedResponse, kind, i, err)
		}
		if err := PT(&item).Validate(); err != nil {
			return nil, fmt.Errorf("%s item %d: %w", kind, i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrMalformedResponse}, args...)...)
}
