// Package rate implements fixed-window rate limiting on Redis counters.
//
// The increment is atomic at the store boundary (INCR creates the key
// when absent), so two racing calls for one identifier can never both
// observe an empty window. Windows reset lazily: the counter key expires
// with the window, which doubles as the physical TTL eviction bounding
// storage growth.
package rate
