package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks identifiers generated locally for provisional records.
const TempIDPrefix = "tmp-"

// ID is an opaque record identifier. The API serves numeric ids; ID accepts
// both JSON numbers and strings and re-encodes digit-only ids as numbers.
type ID string

// NewTempID returns a fresh provisional identifier.
func NewTempID() ID {
	return ID(TempIDPrefix + uuid.NewString())
}

// IsTemp reports whether id was generated locally.
func (id ID) IsTemp() bool {
	return strings.HasPrefix(string(id), TempIDPrefix)
}

func (id ID) String() string { return string(id) }

// IsZero reports whether id is empty.
func (id ID) IsZero() bool { return id == "" }

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	// Only canonical integers go out bare; "007" or "+5" stay strings.
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode id %s: %w", data, err)
		}
		*id = ID(n.String())
	}
	return nil
}
