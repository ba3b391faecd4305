package delivery

import "time"

// Backoff computes the delay before the next attempt:
//
//	delay(attempt) = min(baseDelay * 2^clamp(attempt-1, 0, 30), cap)
//
// attempt is the attempt number that just failed (1-indexed). The clamp
// guards against a shift overflow for pathologically large attempt counts;
// the cap is reached long before 30 retries under any sane baseDelay.
func Backoff(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	n := attempt - 1
	if n < 0 {
		n = 0
	}
	if n > 30 {
		n = 30
	}

	delay := baseDelay * time.Duration(uint64(1)<<uint(n))
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}
	return delay
}
