package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Option is a single list-block choice and whether it is currently selected.
type Option struct {
	ID       string
	Selected bool
}

// OptionSet is the ordered option mapping of a list block. Order is insertion
// order and is preserved through JSON, where the set is encoded as an object
// of id to selected flag.
type OptionSet []Option

// Has reports whether id is an option.
func (o OptionSet) Has(id string) bool {
	return o.index(id) >= 0
}

// IsSelected reports whether id is present and selected.
func (o OptionSet) IsSelected(id string) bool {
	idx := o.index(id)
	return idx >= 0 && o[idx].Selected
}

// IDs returns option ids in order, only selected ones unless includeUnselected.
func (o OptionSet) IDs(includeUnselected bool) []string {
	out := make([]string, 0, len(o))
	for _, opt := range o {
		if opt.Selected || includeUnselected {
			out = append(out, opt.ID)
		}
	}
	return out
}

// SelectedCount returns the number of selected options.
func (o OptionSet) SelectedCount() int {
	n := 0
	for _, opt := range o {
		if opt.Selected {
			n++
		}
	}
	return n
}

func (o OptionSet) index(id string) int {
	for i, opt := range o {
		if opt.ID == id {
			return i
		}
	}
	return -1
}

func (o OptionSet) clone() OptionSet {
	if o == nil {
		return nil
	}
	out := make(OptionSet, len(o))
	copy(out, o)
	return out
}

// MarshalJSON encodes the set as an ordered JSON object.
func (o OptionSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(opt.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		if opt.Selected {
			buf.WriteString(":true")
		} else {
			buf.WriteString(":false")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of id to selected flag, keeping key order.
func (o *OptionSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("options: expected object, got %v", tok)
	}
	out := OptionSet{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("options: expected string key, got %v", keyTok)
		}
		var selected bool
		if err := dec.Decode(&selected); err != nil {
			return fmt.Errorf("options: decode %s: %w", key, err)
		}
		if idx := out.index(key); idx >= 0 {
			out[idx].Selected = selected
			continue
		}
		out = append(out, Option{ID: key, Selected: selected})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}
