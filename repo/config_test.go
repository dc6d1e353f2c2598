package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGeneratesDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ballot")

	r, err := Load(dir)
	require.Nil(t, err)
	assert.True(t, Exist(filepath.Join(dir, cfgFileName)))
	assert.Equal(t, dir, r.Config.RepoRoot)
	assert.Equal(t, 7, r.Config.Form.DefaultDays)
	assert.Equal(t, DefaultContractAddr, r.Config.ContractAddr)

	str, err := MarshalConfig(r.Config)
	require.Nil(t, err)
	t.Logf("config:\n%s", str)
	assert.Contains(t, str, "contract_addr")
	assert.NotContains(t, str, "RepoRoot")
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := Load(dir)
	require.Nil(t, err)

	r.Config.DialUrl = "ws://10.0.0.1:8546"
	r.Config.Tx.ReceiptBackoff = 3 * time.Second
	r.Config.Account.Address = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	require.Nil(t, r.Flush())

	loaded, err := Load(dir)
	require.Nil(t, err)
	assert.Equal(t, "ws://10.0.0.1:8546", loaded.Config.DialUrl)
	assert.Equal(t, 3*time.Second, loaded.Config.Tx.ReceiptBackoff)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", loaded.Config.Account.Address)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.Nil(t, err)

	t.Setenv("BALLOT_DIAL_URL", "ws://override:8545")
	t.Setenv("BALLOT_QUERY_CONCURRENCY", "2")

	r, err := Load(dir)
	require.Nil(t, err)
	assert.Equal(t, "ws://override:8545", r.Config.DialUrl)
	assert.Equal(t, 2, r.Config.Query.Concurrency)
}

func TestLoadRepoRootFromEnv(t *testing.T) {
	p, err := LoadRepoRootFromEnv("/tmp/explicit")
	require.Nil(t, err)
	assert.Equal(t, "/tmp/explicit", p)

	t.Setenv(rootPathEnvVar, "/tmp/from-env")
	p, err = LoadRepoRootFromEnv("")
	require.Nil(t, err)
	assert.Equal(t, "/tmp/from-env", p)
}

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{name: "default", modify: func(c *Config) {}, ok: true},
		{name: "empty dial url", modify: func(c *Config) { c.DialUrl = "" }},
		{name: "bad contract", modify: func(c *Config) { c.ContractAddr = "0x1234" }},
		{name: "bad account", modify: func(c *Config) { c.Account.Address = "alice" }},
		{name: "min above max", modify: func(c *Config) { c.Form.MinDays = 31 }},
		{name: "default outside range", modify: func(c *Config) { c.Form.DefaultDays = 45 }},
		{name: "zero concurrency", modify: func(c *Config) { c.Query.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig(os.TempDir())
			tt.modify(c)
			err := c.Check()
			if tt.ok {
				assert.Nil(t, err)
			} else {
				assert.NotNil(t, err)
			}
		})
	}
}

func TestCheckWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new")
	assert.Nil(t, CheckWritable(dir))
	assert.True(t, Exist(dir))
	assert.Nil(t, CheckWritable(dir))
}
