package ratelimitsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_Allow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	ctx := context.Background()
	lim := NewMemoryLimiter(2, time.Minute)

	tests := []struct {
		name    string
		key     string
		advance time.Duration
		want    bool
	}{
		{name: "first hit", key: "1.2.3.4:/login", want: true},
		{name: "second hit", key: "1.2.3.4:/login", want: true},
		{name: "over limit", key: "1.2.3.4:/login", want: false},
		{name: "other key", key: "5.6.7.8:/login", want: true},
		{name: "still blocked", key: "1.2.3.4:/login", advance: 30 * time.Second, want: false},
		{name: "new window", key: "1.2.3.4:/login", advance: 31 * time.Second, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = now.Add(tt.advance)
			ok, err := lim.Allow(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestMemoryLimiter_Disabled(t *testing.T) {
	lim := NewMemoryLimiter(0, time.Minute)
	for i := 0; i < 5; i++ {
		ok, err := lim.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRedisLimiter_Key(t *testing.T) {
	now := time.Unix(125, 0)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	lim := NewRedisLimiter(nil, "darasa:rl", 10, time.Minute).(*redisLimiter)
	assert.Equal(t, "darasa:rl:ip:/v1/auth/login:2", lim.key("ip:/v1/auth/login"))

	now = time.Unix(185, 0)
	assert.Equal(t, "darasa:rl:ip:/v1/auth/login:3", lim.key("ip:/v1/auth/login"))
}
