// Package relay hands collected form fields from the chat widget to the contact
// form without either side referencing the other.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Key is the well-known storage key holding the relayed form data.
const Key = "contactFormData"

// ErrFieldRequired is returned when SetField is called without a field name.
var ErrFieldRequired = errors.New("relay: field name required")

// Store is the capability shared by the conversation engine (writer) and the
// contact form (reader). Writes merge into the stored mapping; last write wins.
type Store interface {
	SetField(ctx context.Context, name, value string) error
	ReadAll(ctx context.Context) (map[string]string, error)
}

// Factory builds the Store for one visitor session.
type Factory interface {
	For(session string) Store
}

// ScopedKey namespaces Key for a single visitor.
func ScopedKey(session string) string {
	session = strings.TrimSpace(session)
	if session == "" {
		return Key
	}
	return Key + ":" + session
}

// merge applies {name: value} to blob as an RFC 7386 merge patch. A blob that
// does not hold a JSON object is discarded.
func merge(blob []byte, name, value string) ([]byte, error) {
	patch, err := json.Marshal(map[string]string{name: value})
	if err != nil {
		return nil, err
	}
	if _, ok := decode(blob); !ok {
		blob = []byte("{}")
	}
	return jsonpatch.MergePatch(blob, patch)
}

// decode parses a stored blob. Missing or unreadable blobs yield an empty
// mapping and ok=false.
func decode(blob []byte) (map[string]string, bool) {
	if len(blob) == 0 {
		return map[string]string{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal(blob, &raw); err != nil || raw == nil {
		return map[string]string{}, false
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, true
}
