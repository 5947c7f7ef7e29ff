package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// GenerateSeed returns a random seed for the shard hash, so timeline placement
// differs between processes.
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// HashString returns the FNV-1a hash of s, with seed mixed into the offset basis.
func HashString(s string, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	hash := uint64(offset64) ^ seed
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// ShardIndex maps the timeline key to one of n shards.
// The low bits of FNV-1a mix poorly for short keys, so they are dropped.
func ShardIndex(key string, seed uint64, n int) int {
	if n <= 1 {
		return 0
	}
	return int((HashString(key, seed) >> 7) % uint64(n))
}

// NodeID derives the dragonboat replica id of a cluster member from its name.
// The result is stable across processes and never 0, which dragonboat rejects.
func NodeID(name string) uint64 {
	if id := HashString(name, 0); id != 0 {
		return id
	}
	return 1
}
