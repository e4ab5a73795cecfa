package conv

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// AsUint64 converts a raw JSON id into a request id. Numeric strings are accepted.
func AsUint64(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false
	}
	switch actual := value.(type) {
	case float64:
		if actual < 0 || actual != math.Trunc(actual) || actual > math.MaxUint64 {
			return 0, false
		}
		return uint64(actual), true
	case string:
		ret, err := strconv.ParseUint(actual, 10, 64)
		return ret, err == nil
	}
	return 0, false
}

const maxTimeout = time.Duration(math.MaxInt64)

// Timeout returns the positive `timeout` field of params, interpreted as seconds.
// Values beyond the range of time.Duration are capped.
func Timeout(params json.RawMessage) (time.Duration, bool) {
	if len(params) == 0 {
		return 0, false
	}
	var holder struct {
		Timeout interface{} `json:"timeout"`
	}
	if err := json.Unmarshal(params, &holder); err != nil {
		return 0, false
	}
	seconds, ok := holder.Timeout.(float64)
	if !ok || seconds <= 0 {
		return 0, false
	}
	if seconds >= maxTimeout.Seconds() {
		return maxTimeout, true
	}
	return time.Duration(seconds * float64(time.Second)), true
}
