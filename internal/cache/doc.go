// Package cache holds the board summary read model cache.
//
// Two backends implement Summaries: an in-process TTL map used by default
// and a Redis-backed cache selected when REDIS_URL is configured. Both are
// best effort: a backend failure reads as a miss and the caller recomputes
// from the repositories, so the cache never has to be available, only fast.
// The realtime registry does not consult the cache.
package cache
