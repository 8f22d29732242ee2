package memcached

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryEncoding(t *testing.T) {
	deadline := time.Unix(1583141400, 0)
	value, got, ok := decodeEntry(encodeEntry(deadline, []byte(`[{"ref":"app:c1"}]`)))
	require.True(t, ok)
	assert.True(t, got.Equal(deadline))
	assert.Equal(t, `[{"ref":"app:c1"}]`, string(value))

	_, _, ok = decodeEntry([]byte{0, 1, 2})
	assert.False(t, ok, "too short to carry a deadline")
}

func TestSRVServersSorted(t *testing.T) {
	defer func(orig func(string, string, string) (string, []*net.SRV, error)) { lookupSRV = orig }(lookupSRV)
	lookupSRV = func(service, proto, name string) (string, []*net.SRV, error) {
		assert.Equal(t, "memcached", service)
		assert.Equal(t, "tcp", proto)
		assert.Equal(t, "memcached.ecsdeploy.local", name)
		return "", []*net.SRV{
			{Target: "memcached-1.ecsdeploy.local.", Port: 11211},
			{Target: "memcached-0.ecsdeploy.local.", Port: 11211},
		}, nil
	}

	servers, err := srvServers("memcached", "memcached.ecsdeploy.local")
	require.NoError(t, err)
	assert.Equal(t, []string{"memcached-0.ecsdeploy.local.:11211", "memcached-1.ecsdeploy.local.:11211"}, servers)
}

func TestNewSurvivesFailedLookup(t *testing.T) {
	defer func(orig func(string, string, string) (string, []*net.SRV, error)) { lookupSRV = orig }(lookupSRV)
	lookupSRV = func(service, proto, name string) (string, []*net.SRV, error) {
		return "", nil, errors.New("no such host")
	}

	m := New(Config{Hostname: "memcached", Service: "memcached", UpdateInterval: time.Minute})
	defer m.Stop()
	_, err := m.lookup()
	assert.Error(t, err)
}

func TestNewFixedServer(t *testing.T) {
	m := New(Config{Hostname: "127.0.0.1:11211"})
	servers, err := m.lookup()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:11211"}, servers)
	m.Stop()
}
