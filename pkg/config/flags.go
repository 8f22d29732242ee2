package config

import (
	"github.com/spf13/pflag"
)

// Flags are the command-line overrides for a Config. Only the flags
// actually given take effect; everything else comes from the file, or
// the defaults.
type Flags struct {
	fs     *pflag.FlagSet
	values Config
	copy   map[string]func(dst, src *Config)
}

// BindFlags adds a flag for each setting to fs, with the defaults as
// their defaults.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: Default(), copy: map[string]func(dst, src *Config){}}
	v := &f.values

	f.string("region", &v.Region, "AWS region of the registry and cluster", func(d, s *Config) { d.Region = s.Region })
	f.string("repository", &v.Repository, "image repository name, bare or qualified with the registry host", func(d, s *Config) { d.Repository = s.Repository })
	f.string("cluster", &v.Cluster, "ECS cluster the service runs in", func(d, s *Config) { d.Cluster = s.Cluster })
	f.string("service", &v.Service, "ECS service to release to", func(d, s *Config) { d.Service = s.Service })
	f.string("family", &v.Family, "task definition family the service runs", func(d, s *Config) { d.Family = s.Family })
	f.string("container", &v.Container, "name of the container to put the image in (default: the first)", func(d, s *Config) { d.Container = s.Container })
	f.string("staging-dir", &v.StagingDir, "directory to stage task definitions in (default: the OS temp dir)", func(d, s *Config) { d.StagingDir = s.StagingDir })
	f.string("memcached-hostname", &v.Memcached.Hostname, "memcached host:port, or name to look up SRV records for, to cache image listings in", func(d, s *Config) { d.Memcached.Hostname = s.Memcached.Hostname })
	f.string("pushgateway-url", &v.PushgatewayURL, "Prometheus Pushgateway to push release metrics to", func(d, s *Config) { d.PushgatewayURL = s.PushgatewayURL })

	fs.BoolVar(&v.Force, "force", v.Force, "force replacement of running tasks on rollback")
	f.copy["force"] = func(d, s *Config) { d.Force = s.Force }
	fs.DurationVar(&v.Timeout, "timeout", v.Timeout, "how long to wait for the service to stabilise")
	f.copy["timeout"] = func(d, s *Config) { d.Timeout = s.Timeout }
	fs.DurationVar(&v.PollInterval, "poll-interval", v.PollInterval, "how often to check on the service while waiting")
	f.copy["poll-interval"] = func(d, s *Config) { d.PollInterval = s.PollInterval }
	fs.DurationVar(&v.Memcached.Timeout, "memcached-timeout", v.Memcached.Timeout, "maximum time to wait before giving up on memcached requests")
	f.copy["memcached-timeout"] = func(d, s *Config) { d.Memcached.Timeout = s.Memcached.Timeout }
	return f
}

func (f *Flags) string(name string, p *string, usage string, copy func(dst, src *Config)) {
	f.fs.StringVar(p, name, *p, usage)
	f.copy[name] = copy
}

// Override applies the flags that were given to c. Subcommands parse
// these through their own flag set, so fs.Visit would not see them.
func (f *Flags) Override(c *Config) {
	f.fs.VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			return
		}
		if copy, ok := f.copy[flag.Name]; ok {
			copy(c, &f.values)
		}
	})
}
