package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	dir, err := ioutil.TempDir("", "ecsdeploy-config")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "ecsdeploy.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))
	return path
}

// setenv sets (or, given "", unsets) an environment variable for the
// rest of the test.
func setenv(t *testing.T, key, value string) {
	old, had := os.LookupEnv(key)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
	if value == "" {
		require.NoError(t, os.Unsetenv(key))
	} else {
		require.NoError(t, os.Setenv(key, value))
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "us-east-1", c.Region)
	assert.Equal(t, "app", c.Repository)
	assert.Equal(t, "default", c.Cluster)
	assert.Equal(t, "app", c.Service)
	assert.Equal(t, "app", c.Family)
	assert.Equal(t, "", c.Container)
	assert.True(t, c.Force)
	assert.Equal(t, 10*time.Minute, c.Timeout)
	assert.Equal(t, 15*time.Second, c.PollInterval)
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
region: eu-west-1
cluster: prod
service: web
family: web
container: app
timeout: 5m
memcached:
  hostname: memcached.default.svc.cluster.local
`)
	c, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", c.Region)
	assert.Equal(t, "prod", c.Cluster)
	assert.Equal(t, "app", c.Container)
	assert.Equal(t, 5*time.Minute, c.Timeout)
	assert.Equal(t, "memcached.default.svc.cluster.local", c.Memcached.Hostname)
	// not in the file
	assert.Equal(t, "app", c.Repository)
	assert.Equal(t, 15*time.Second, c.PollInterval)
	assert.Equal(t, "memcached", c.Memcached.Service)
}

func TestLoadMissing(t *testing.T) {
	setenv(t, RegionEnvVar, "")
	c, err := Load(filepath.Join(os.TempDir(), "does-not-exist.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = Load(filepath.Join(os.TempDir(), "does-not-exist.yaml"), true)
	assert.Error(t, err)
}

func TestLoadRegionPrecedence(t *testing.T) {
	setenv(t, RegionEnvVar, "ap-southeast-2")

	// the file names the default region explicitly; it still wins
	c, err := Load(writeConfig(t, "region: us-east-1\n"), true)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", c.Region)

	c, err = Load(writeConfig(t, "cluster: prod\n"), true)
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", c.Region)

	c, err = Load(filepath.Join(os.TempDir(), "does-not-exist.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", c.Region)

	setenv(t, RegionEnvVar, "")
	c, err = Load(writeConfig(t, "cluster: prod\n"), true)
	require.NoError(t, err)
	assert.Equal(t, Default().Region, c.Region)
}

func TestLoadUnknownField(t *testing.T) {
	path := writeConfig(t, "regoin: eu-west-1\n")
	_, err := Load(path, true)
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	os.Unsetenv(PathEnvVar)
	p, required := Path("", false)
	assert.Equal(t, DefaultPath, p)
	assert.False(t, required)

	os.Setenv(PathEnvVar, "/etc/ecsdeploy.yaml")
	defer os.Unsetenv(PathEnvVar)
	p, required = Path("", false)
	assert.Equal(t, "/etc/ecsdeploy.yaml", p)
	assert.True(t, required)

	p, required = Path("mine.yaml", true)
	assert.Equal(t, "mine.yaml", p)
	assert.True(t, required)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "cluster: prod\nservice: web\ntimeout: 5m\n")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--service", "api", "--force=false", "--poll-interval", "1s"}))

	c, err := Load(path, true)
	require.NoError(t, err)
	flags.Override(&c)

	assert.Equal(t, "prod", c.Cluster, "from the file")
	assert.Equal(t, "api", c.Service, "flag beats file")
	assert.Equal(t, 5*time.Minute, c.Timeout, "unset flag leaves the file value")
	assert.False(t, c.Force)
	assert.Equal(t, time.Second, c.PollInterval)
	assert.Equal(t, "app", c.Family, "default")
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"empty region":      func(c *Config) { c.Region = "" },
		"empty family":      func(c *Config) { c.Family = "" },
		"zero timeout":      func(c *Config) { c.Timeout = 0 },
		"zero poll":         func(c *Config) { c.PollInterval = 0 },
		"bad pushgateway":   func(c *Config) { c.PushgatewayURL = "pushgateway:9091" },
		"missing staging":   func(c *Config) { c.StagingDir = filepath.Join(os.TempDir(), "no-such-staging-dir") },
		"negative memcache": func(c *Config) { c.Memcached.Timeout = -time.Second },
	} {
		c := Default()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}

	c := Default()
	c.PushgatewayURL = "http://pushgateway:9091"
	c.StagingDir = os.TempDir()
	assert.NoError(t, c.Validate())
}
