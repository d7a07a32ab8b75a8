package calc

import (
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

const lockStripes = 64

// sessionLocks serializes operations on the same session. Sessions hash
// onto a fixed set of mutexes, so unrelated sessions may share one.
type sessionLocks [lockStripes]sync.Mutex

func (l *sessionLocks) get(sid string) *sync.Mutex {
	return &l[fnv1a.HashString64(sid)%lockStripes]
}
