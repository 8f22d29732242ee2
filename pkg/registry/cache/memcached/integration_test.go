// +build integration

package memcached

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var memcachedAddr = flag.String("memcached-addr", "127.0.0.1:11211", "host:port of the memcached to test against")

func newIntegrationClient(t *testing.T) *Memcache {
	m := New(Config{
		Hostname: *memcachedAddr,
		Timeout:  time.Second,
		Logger:   log.NewLogfmtLogger(os.Stderr),
	})
	t.Cleanup(m.Stop)
	return m
}

func TestMemcacheReadWrite(t *testing.T) {
	m := newIntegrationClient(t)
	deadline := time.Now().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, m.Set("ecsdeploy:test", deadline, []byte("listing")))

	value, got, err := m.Get("ecsdeploy:test")
	require.NoError(t, err)
	assert.True(t, got.Equal(deadline))
	assert.Equal(t, "listing", string(value))
}

func TestMemcacheMiss(t *testing.T) {
	m := newIntegrationClient(t)
	_, _, err := m.Get("ecsdeploy:never-set")
	assert.Equal(t, ErrNotCached, err)
}
