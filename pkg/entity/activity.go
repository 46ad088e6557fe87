package entity

import "encoding/json"

// IdentityType classifies an identity (directory user, network, device...).
type IdentityType struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Identity is the user, device or network an event is attributed to.
type Identity struct {
	ID      int64        `json:"id"`
	Label   string       `json:"label"`
	Type    IdentityType `json:"type"`
	Deleted bool         `json:"deleted"`
}

// ActivityItem is a single event of the activity report.
type ActivityItem struct {
	Domain     string     `json:"domain"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Timestamp  int64      `json:"timestamp"`
	Verdict    string     `json:"verdict"`
	Identities []Identity `json:"identities"`
	Categories []Category `json:"categories"`
}

// Validate rejects events that cannot be placed in time.
func (a *ActivityItem) Validate() error {
	if a.Date == "" && a.Timestamp == 0 {
		return malformed("activity item for %q has neither date nor timestamp", a.Domain)
	}
	for i, c := range a.Categories {
		if c.Label == "" {
			return malformed("activity item for %q: category %d has no label", a.Domain, i)
		}
	}
	return nil
}

// PrimaryIdentity is the label of the first identity, or "" when none.
func (a ActivityItem) PrimaryIdentity() string {
	for _, id := range a.Identities {
		if id.Label != "" {
			return id.Label
		}
	}
	return ""
}

// DecodeActivity decodes and validates activity items.
func DecodeActivity(raw []json.RawMessage) ([]ActivityItem, error) {
	return decodeAll[ActivityItem]("activity", raw)
}
