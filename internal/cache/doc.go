// Package cache keeps downloaded and synthesized audio around between plays.
// A size-bounded in-memory LRU (L1) sits in front of a zstd-compressed disk
// cache (L2) that survives restarts.
package cache
