package sys

import "sync"

// preallocCache caches, per device id, whether fallocate-style preallocation
// is known to work on that device. Avoids a repeated fstatfs probe for every
// preallocation on the same mounted filesystem.
var preallocCache sync.Map

func preallocCacheLoad(dev uint64) (allowed bool, found bool) {
	if v, ok := preallocCache.Load(dev); ok {
		if b, ok2 := v.(bool); ok2 {
			return b, true
		}
	}
	return false, false
}

func preallocCacheStore(dev uint64, allowed bool) {
	preallocCache.Store(dev, allowed)
}
