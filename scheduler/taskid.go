package scheduler

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
)

// newTaskID returns a short base58 token used to correlate a job's log
// lines across subprocess boundaries.
func newTaskID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base58.Encode(buf)
}
