package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Ref points at another API resource. The API serializes relations either as a
// bare primary key or as a nested object; Ref accepts both and always marshals
// back to the bare key.
type Ref struct {
	ID   int64
	Name string
}

// NewRef creates a reference by primary key
func NewRef(id int64) *Ref {
	return &Ref{ID: id}
}

// String returns the name when known, the key otherwise
func (r *Ref) String() string {
	if r == nil {
		return ""
	}
	if r.Name != "" {
		return r.Name
	}
	return strconv.FormatInt(r.ID, 10)
}

// MarshalJSON writes the bare primary key
func (r Ref) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(r.ID, 10)), nil
}

// UnmarshalJSON accepts 12, "12", "Warehouse 1" or {"id": 12, "name": "..."}.
// A non-numeric string is taken as the display name.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decoding reference object: %w", err)
		}
		r.ID = obj.ID
		r.Name = obj.Name
		if r.Name == "" {
			r.Name = obj.Username
		}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			r.ID = id
			return nil
		}
		r.Name = s
		return nil
	default:
		id, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("reference key %s is not numeric", data)
		}
		r.ID = id
		return nil
	}
}
