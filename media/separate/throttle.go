package separate

import "time"

// ProgressFunc receives separation progress in percent [0,100] with a
// short human-readable message.
type ProgressFunc func(percent int, message string)

// throttled wraps a ProgressFunc so intermediate calls are spaced at
// least interval apart. The final call (percent >= 100) always passes.
func throttled(fn ProgressFunc, interval time.Duration) ProgressFunc {
	if fn == nil {
		return func(int, string) {}
	}
	var last time.Time
	return func(percent int, message string) {
		now := time.Now()
		if percent < 100 && now.Sub(last) < interval {
			return
		}
		last = now
		fn(percent, message)
	}
}
