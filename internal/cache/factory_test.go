package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     CacheConfig
		want    string
		wantErr bool
	}{
		{"memory", CacheConfig{Type: TypeMemory, DefaultTTL: time.Minute}, "memory", false},
		{"empty type", CacheConfig{}, "memory", false},
		{"redis without url falls back", CacheConfig{Type: TypeRedis}, "memory", false},
		{"redis", CacheConfig{Type: TypeRedis, RedisURL: "redis://" + mr.Addr(), Prefix: "t:"}, "redis", false},
		{"redis unreachable", CacheConfig{Type: TypeRedis, RedisURL: "redis://127.0.0.1:1"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCache(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = c.Close() }()

			switch tt.want {
			case "memory":
				assert.IsType(t, &MemoryCache{}, c)
			case "redis":
				assert.IsType(t, &RedisCache{}, c)
			}
		})
	}
}
