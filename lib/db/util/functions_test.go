package util

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringSeed(t *testing.T) {
	assert.Equal(t, HashString("alice", 1), HashString("alice", 1))
	assert.NotEqual(t, HashString("alice", 1), HashString("alice", 2))
	assert.NotEqual(t, HashString("alice", 1), HashString("bob", 1))
}

func TestShardIndex(t *testing.T) {
	assert.Equal(t, 0, ShardIndex("alice", 42, 1))
	assert.Equal(t, 0, ShardIndex("alice", 42, 0))

	counts := make([]int, 8)
	for i := 0; i < 8000; i++ {
		idx := ShardIndex(fmt.Sprintf("user-%d", i), 42, len(counts))
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(counts))
		counts[idx]++
	}
	for i, n := range counts {
		assert.Positive(t, n, "shard %d is empty", i)
	}
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, NodeID("node-1"), NodeID("node-1"))
	assert.NotEqual(t, NodeID("node-1"), NodeID("node-2"))
	assert.NotZero(t, NodeID(""))
}
