package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, []string{"capacity"}},
		{"huge capacity", func(c *Config) { c.Capacity = MaxCapacity + 1 }, []string{"capacity"}},
		{"fast poll", func(c *Config) { c.PollInterval = time.Millisecond }, []string{"poll-interval"}},
		{"negative settle", func(c *Config) { c.SettleDelay = -time.Second }, []string{"settle-delay"}},
		{"zero settle", func(c *Config) { c.SettleDelay = 0 }, []string{"settle-delay"}},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, []string{"log-format"}},
		{"several", func(c *Config) {
			c.Capacity = -1
			c.PollInterval = 0
		}, []string{"capacity", "poll-interval"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	assert.Equal(t, Default(), FromViper(v))
}

func TestWriteFile_ReadBackThroughViper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	want := Default()
	want.Capacity = 25
	want.PollInterval = 250 * time.Millisecond
	want.SettleDelay = 40 * time.Millisecond
	want.Token = "s3cret"
	want.LogLevel = "debug"

	require.NoError(t, WriteFile(path, want, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `poll-interval = "250ms"`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, want, FromViper(v))
}

func TestWriteFile_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, WriteFile(path, Default(), false))
	assert.ErrorIs(t, WriteFile(path, Default(), false), ErrExists)
	assert.NoError(t, WriteFile(path, Default(), true))
}
