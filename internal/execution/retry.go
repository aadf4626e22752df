package execution

import (
	"math"
	"strings"
	"time"
)

// Bucket classifies an order-placement failure for retry purposes.
type Bucket string

const (
	BucketTransient Bucket = "transient"
	BucketThrottle  Bucket = "throttle"
	BucketRisk      Bucket = "risk"
	BucketFatal     Bucket = "fatal"
)

var maxAttempts = map[Bucket]int{
	BucketTransient: 3,
	BucketThrottle:  4,
	BucketRisk:      1,
	BucketFatal:     1,
}

// Classify buckets an error by message substring.
func Classify(err error) Bucket {
	if err == nil {
		return BucketFatal
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "connection", "network"):
		return BucketTransient
	case containsAny(msg, "rate limit"):
		return BucketThrottle
	case containsAny(msg, "margin", "rms", "insufficient"):
		return BucketRisk
	default:
		return BucketFatal
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// MaxAttempts returns the retry ceiling for a bucket.
func MaxAttempts(b Bucket) int {
	return maxAttempts[b]
}

// Backoff returns the sleep duration before attempt n+1 (n is 0-indexed,
// the number of attempts already made).
func Backoff(b Bucket, attempt int) time.Duration {
	var seconds float64
	switch b {
	case BucketThrottle:
		seconds = math.Min(1.5, 0.4*float64(attempt+1))
	case BucketTransient:
		seconds = math.Min(1.0, 0.2*math.Pow(2, float64(attempt)))
	default:
		seconds = 0
	}
	return time.Duration(seconds * float64(time.Second))
}
