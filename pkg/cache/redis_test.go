package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisCache_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test")
	}

	c, err := NewRedisCache("127.0.0.1:1", "", 0)
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestCacheKey_String(t *testing.T) {
	key := CacheKey{Prefix: "match", ID: "123"}
	assert.Equal(t, "match:123", key.String())
}

func TestMatchCacheKey(t *testing.T) {
	key := MatchCacheKey("9f86d081884c7d65")
	assert.Equal(t, "match:9f86d081884c7d65", key)
}
