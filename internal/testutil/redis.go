package testutil

import (
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// RedisTB is the subset of testing.TB miniredis setup needs.
type RedisTB interface {
	Helper()
	Fatalf(format string, args ...interface{})
	Cleanup(func())
}

// SetupMiniredis starts an in-process redis and returns a connected client.
// Both are torn down via t.Cleanup.
func SetupMiniredis(t RedisTB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return mr, client
}
