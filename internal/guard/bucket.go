package guard

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	minuteBucket = time.Minute
	hourBucket   = time.Hour
	dayBucket    = 24 * time.Hour
)

// bucketIndex returns the index of the current time bucket of size
// granularity since the Unix epoch, so two calls within the same bucket
// produce the same key and calls in different buckets never collide.
func bucketIndex(granularity time.Duration) int64 {
	return time.Now().Unix() / int64(granularity.Seconds())
}

// windowFor returns the TTL hint passed to AtomicAdd for a given bucket
// label, sized generously above the bucket's own span so a counter survives
// for the whole bucket even if first touched near its end.
func windowFor(label string) time.Duration {
	switch label {
	case "minute":
		return 2 * time.Minute
	case "hour":
		return 2 * time.Hour
	case "day":
		return 2 * 24 * time.Hour
	default:
		return 0
	}
}

func parseBucketCount(raw []byte) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var f float64
	if _, err := fmt.Sscanf(string(raw), "%g", &f); err != nil {
		return 0, fmt.Errorf("guard: parse bucket count %q: %w", raw, err)
	}
	return int(f), nil
}

func encodeTokenKeys(keys []string) string {
	data, _ := json.Marshal(keys)
	return string(data)
}

func decodeTokenKeys(token string) []string {
	var keys []string
	_ = json.Unmarshal([]byte(token), &keys)
	return keys
}
