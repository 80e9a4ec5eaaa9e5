// Package ident issues session-unique identifiers for locally created
// records. IDs combine a monotonic counter with a short random suffix so
// they sort by creation order while staying collision-resistant across
// restarts of the same session log.
package ident

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var counter uint64

// New returns an identifier of the form "<prefix>-<seq>-<rand>". The
// sequence number is process-wide, not per prefix.
func New(prefix string) string {
	seq := atomic.AddUint64(&counter, 1)
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%d-%s", prefix, seq, suffix)
}
