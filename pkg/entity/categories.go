package entity

import "encoding/json"

// SecurityType is the category type the activity report filters on.
const SecurityType = "security"

// Category is an entry of the category taxonomy.
type Category struct {
	ID         int    `json:"id"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

// Validate requires a label.
func (c *Category) Validate() error {
	if c.Label == "" {
		return malformed("category %d has no label", c.ID)
	}
	return nil
}

// IsSecurity reports whether the category is security relevant.
func (c Category) IsSecurity() bool { return c.Type == SecurityType }

// DecodeCategories decodes and validates category items.
func DecodeCategories(raw []json.RawMessage) ([]Category, error) {
	return decodeAll[Category]("category", raw)
}
