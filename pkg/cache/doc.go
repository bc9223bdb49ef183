// Package cache provides a generic, thread-safe LRU cache.
//
// LRU backs the in-process tenant directory and the memoised default company
// per tenant. Besides the usual Get/Put/Remove it supports Peek, which reads
// without promoting an entry, and Prune, which drops entries matching a
// predicate; the tenant directory uses Prune to enforce its hard max age.
//
//	c := cache.NewLRU[string, time.Time](1024)
//	c.Put("acme", time.Now())
//	removed := c.Prune(func(_ string, at time.Time) bool {
//		return time.Since(at) > 15*time.Minute
//	})
package cache
