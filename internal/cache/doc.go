// Package cache provides a small generic LRU cache.
//
// The compile pipeline keeps front-end results here, keyed by a hash of
// the stage source, so rebuilding a chain after a parameter or layout
// change does not parse and lower unchanged shaders again.
//
//	c := cache.New[cache.Key, *ir.Module](64)
//	m, err := c.GetOrCreate(key, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
