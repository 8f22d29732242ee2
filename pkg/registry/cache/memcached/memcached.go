/*
Package memcached caches image listings in memcached.

Each entry is stored with its refresh deadline in front of it. The
item's own expiry is set well beyond that deadline, so a listing that
is due a refresh is still there to fall back on; memcached drops it
once it is truly stale, or when under memory pressure. Either way it
is only a cache miss, and the listing is fetched again.
*/
package memcached

import (
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// MinExpiry is the least time memcached is asked to keep an entry.
const MinExpiry = time.Hour

const deadlineSize = 8

var ErrNotCached = errors.New("item not in cache")

// Config says where memcached is, and how to talk to it.
type Config struct {
	// Hostname is either host:port of a single server, or a name to
	// look up SRV records for.
	Hostname string
	// Service is the SRV service name, e.g., "memcached".
	Service string
	Timeout time.Duration
	// UpdateInterval is how often the SRV records are looked up again.
	UpdateInterval time.Duration
	MaxIdleConns   int
	Logger         log.Logger
}

// Memcache is a memcached client that keeps its server list up to
// date with DNS.
type Memcache struct {
	client  *memcache.Client
	servers *memcache.ServerList
	lookup  func() ([]string, error)
	logger  log.Logger

	quit chan struct{}
	wait sync.WaitGroup
}

// lookupSRV is net.LookupSRV, swapped out in tests.
var lookupSRV = net.LookupSRV

func New(config Config) *Memcache {
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	var servers memcache.ServerList
	client := memcache.NewFromSelector(&servers)
	client.Timeout = config.Timeout
	client.MaxIdleConns = config.MaxIdleConns

	m := &Memcache{
		client:  client,
		servers: &servers,
		logger:  config.Logger,
		quit:    make(chan struct{}),
	}
	if strings.Contains(config.Hostname, ":") {
		m.lookup = func() ([]string, error) { return []string{config.Hostname}, nil }
	} else {
		m.lookup = func() ([]string, error) { return srvServers(config.Service, config.Hostname) }
	}

	if err := m.updateServers(); err != nil {
		level.Warn(m.logger).Log("msg", "setting memcached servers", "host", config.Hostname, "err", err)
	}
	if config.UpdateInterval > 0 {
		m.wait.Add(1)
		go m.updateLoop(config.UpdateInterval)
	}
	return m
}

// Get returns the value at key, and its refresh deadline.
func (m *Memcache) Get(key string) ([]byte, time.Time, error) {
	item, err := m.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, time.Time{}, ErrNotCached
	}
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "fetching from memcached")
	}
	value, deadline, ok := decodeEntry(item.Value)
	if !ok {
		return nil, time.Time{}, ErrNotCached
	}
	return value, deadline, nil
}

// Set stores value at key with its refresh deadline. memcached is
// asked to keep it for twice as long as that, and at least MinExpiry,
// so there is something to fall back on while refreshing.
func (m *Memcache) Set(key string, refreshDeadline time.Time, value []byte) error {
	expiry := 2 * time.Until(refreshDeadline)
	if expiry < MinExpiry {
		expiry = MinExpiry
	}
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      encodeEntry(refreshDeadline, value),
		Expiration: int32(expiry.Seconds()),
	})
	return errors.Wrap(err, "storing in memcached")
}

// Stop the periodic server lookups.
func (m *Memcache) Stop() {
	close(m.quit)
	m.wait.Wait()
}

func encodeEntry(deadline time.Time, value []byte) []byte {
	b := make([]byte, deadlineSize, deadlineSize+len(value))
	binary.BigEndian.PutUint64(b, uint64(deadline.Unix()))
	return append(b, value...)
}

func decodeEntry(b []byte) ([]byte, time.Time, bool) {
	if len(b) < deadlineSize {
		return nil, time.Time{}, false
	}
	deadline := time.Unix(int64(binary.BigEndian.Uint64(b)), 0)
	return b[deadlineSize:], deadline, true
}

func (m *Memcache) updateLoop(interval time.Duration) {
	defer m.wait.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.updateServers(); err != nil {
				level.Warn(m.logger).Log("msg", "updating memcached servers", "err", err)
			}
		case <-m.quit:
			return
		}
	}
}

func (m *Memcache) updateServers() error {
	servers, err := m.lookup()
	if err != nil {
		return err
	}
	return m.servers.SetServers(servers...)
}

// srvServers looks up the servers for a service. SRV priority and
// weight are ignored. The list is sorted, since keys map to a server
// by its index and DNS gives records in any order.
func srvServers(service, hostname string) ([]string, error) {
	_, addrs, err := lookupSRV(service, "tcp", hostname)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up SRV records for %s", hostname)
	}
	var servers []string
	for _, srv := range addrs {
		servers = append(servers, fmt.Sprintf("%s:%d", srv.Target, srv.Port))
	}
	sort.Strings(servers)
	return servers, nil
}
