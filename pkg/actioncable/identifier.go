package actioncable

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// identifierFor returns the canonical wire identifier for a subscription's
// params. Both goccy/go-json and the standard library sort object keys
// alphabetically when marshaling a map, so two params with the same keys and
// values always produce byte-identical identifiers regardless of the order
// the caller built the map in. This is a deliberate, documented choice of
// canonicalization (see DESIGN.md) distinct from an insertion-order encoder;
// callers must not rely on key order surviving into the identifier.
func identifierFor(params map[string]any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal identifier params: %w", err)
	}
	return string(b), nil
}

// channelParams builds the params map for Subscriptions.Create: a bare
// channel name becomes {"channel": name}; a params map is copied and its
// "channel" key is always set to channel, replacing any value params held.
func channelParams(channel string, params map[string]any) map[string]any {
	if params == nil {
		params = make(map[string]any, 1)
	}
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["channel"] = channel
	return out
}
