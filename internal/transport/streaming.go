package transport

import "encoding/json"

// subscriptionKey returns a stable string key for a decoded subscription
// value, used for set-difference comparisons. Values are the []byte blobs
// subscription.Set stores, JSON-encoded parameter maps.
type subscriptionKey = string

// delta computes the new/stale deltas a streaming transport reconciles on
// every tick: new = desired \ lastKnown, stale = lastKnown \ desired.
// Keys are the raw encoded subscription values themselves (byte-identical
// comparison), matching the subscription set's own encoding.
func delta(desired, lastKnown [][]byte) (newKeys, staleKeys [][]byte) {
	desiredSet := make(map[subscriptionKey]struct{}, len(desired))
	for _, d := range desired {
		desiredSet[string(d)] = struct{}{}
	}
	lastKnownSet := make(map[subscriptionKey]struct{}, len(lastKnown))
	for _, l := range lastKnown {
		lastKnownSet[string(l)] = struct{}{}
	}

	for _, d := range desired {
		if _, ok := lastKnownSet[string(d)]; !ok {
			newKeys = append(newKeys, d)
		}
	}
	for _, l := range lastKnown {
		if _, ok := desiredSet[string(l)]; !ok {
			staleKeys = append(staleKeys, l)
		}
	}
	return newKeys, staleKeys
}

// decodeParams decodes one subscription set value back into the parameter
// map it was encoded from, for handlers that need the original params
// rather than the raw bytes.
func decodeParams(raw []byte) (map[string]interface{}, error) {
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}
