// Package config holds the settings for a release: where the image
// comes from, which service it goes to, and how long to wait. They
// can be supplied as YAML (hence YAML annotations), and each can be
// overridden with a command-line flag.
package config

import (
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultPath is where the config file is looked for if neither
	// the flag nor the environment names one. It need not exist.
	DefaultPath = ".ecsdeploy.yaml"
	// PathEnvVar names the config file, when the flag is not given.
	PathEnvVar = "ECSDEPLOY_CONFIG"
	// RegionEnvVar supplies the region when the file doesn't.
	RegionEnvVar = "AWS_REGION"
)

type MemcachedConfig struct {
	// Hostname is either host:port of a single memcached, or a name
	// to look up SRV records for. Empty means no caching.
	Hostname string        `yaml:"hostname"`
	Service  string        `yaml:"service"`
	Timeout  time.Duration `yaml:"timeout"`
	Expiry   time.Duration `yaml:"expiry"`
}

type Config struct {
	Region     string `yaml:"region"`
	Repository string `yaml:"repository"`
	Cluster    string `yaml:"cluster"`
	Service    string `yaml:"service"`
	Family     string `yaml:"family"`
	// Container to put the image in; empty means the first.
	Container    string        `yaml:"container"`
	Force        bool          `yaml:"force"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"pollInterval"`
	// StagingDir is where task definitions are written before
	// registering; empty means the OS temp dir.
	StagingDir     string          `yaml:"stagingDir"`
	Memcached      MemcachedConfig `yaml:"memcached"`
	PushgatewayURL string          `yaml:"pushgatewayURL"`
}

func Default() Config {
	return Config{
		Region:       "us-east-1",
		Repository:   "app",
		Cluster:      "default",
		Service:      "app",
		Family:       "app",
		Force:        true,
		Timeout:      10 * time.Minute,
		PollInterval: 15 * time.Second,
		Memcached: MemcachedConfig{
			Service: "memcached",
			Timeout: time.Second,
			Expiry:  5 * time.Minute,
		},
	}
}

// Load reads the file at path over the defaults. A missing file is
// only an error if it is required, i.e., it was named explicitly.
//
// The region comes from the file if it sets one, then from
// $AWS_REGION, then the default.
func Load(path string, required bool) (Config, error) {
	c := Default()
	c.Region = ""
	bytes, err := ioutil.ReadFile(path)
	switch {
	case os.IsNotExist(err) && !required:
	case err != nil:
		return Default(), errors.Wrapf(err, "reading config file %s", path)
	default:
		if err := yaml.UnmarshalStrict(bytes, &c); err != nil {
			return Default(), errors.Wrapf(err, "parsing config file %s", path)
		}
	}
	if c.Region == "" {
		c.Region = os.Getenv(RegionEnvVar)
	}
	if c.Region == "" {
		c.Region = Default().Region
	}
	return c, nil
}

// Path works out which config file to use: the flag value if it was
// given, then the environment, then the default. The second result
// says whether the file must exist.
func Path(flagValue string, flagGiven bool) (string, bool) {
	if flagGiven {
		return flagValue, true
	}
	if p, ok := os.LookupEnv(PathEnvVar); ok && p != "" {
		return p, true
	}
	return DefaultPath, false
}

// Validate checks the config makes sense before anything is done with
// it.
func (c Config) Validate() error {
	for _, required := range []struct {
		name, value string
	}{
		{"region", c.Region},
		{"repository", c.Repository},
		{"cluster", c.Cluster},
		{"service", c.Service},
		{"family", c.Family},
	} {
		if required.value == "" {
			return fmt.Errorf("%s must not be empty", required.name)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.Memcached.Timeout < 0 || c.Memcached.Expiry < 0 {
		return errors.New("memcached timeout and expiry must not be negative")
	}
	if c.PushgatewayURL != "" {
		u, err := url.Parse(c.PushgatewayURL)
		if err != nil {
			return errors.Wrap(err, "parsing pushgateway URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("pushgateway URL must be http or https, got %q", c.PushgatewayURL)
		}
	}
	if c.StagingDir != "" {
		fi, err := os.Stat(c.StagingDir)
		if err != nil {
			return errors.Wrap(err, "checking staging directory")
		}
		if !fi.IsDir() {
			return fmt.Errorf("staging directory %s is not a directory", c.StagingDir)
		}
	}
	return nil
}
