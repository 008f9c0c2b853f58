package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// The real builders live in subpackages; register a stand-in so config
	// validation has something to resolve against.
	RegisterSource("stub", func(name string, cfg *SourceConfig) (Source, error) {
		return nil, nil
	})
}

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv("FEED_TEST_PASSWORD", "s3cret")

	yaml := `
default: primary
sources:
  primary:
    type: stub
    url: wss://push.example.com:8082
    auth_url: https://auth.example.com/token
    username: trial100
    password: ${FEED_TEST_PASSWORD}
    dial_timeout: 10s
    heartbeat: 30s
  local:
    type: stub
    interval: 100ms
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "primary", cfg.Default)
	require.Len(t, cfg.Sources, 2)

	primary := cfg.Sources["primary"]
	assert.Equal(t, "s3cret", primary.Password, "env references should expand")
	assert.Equal(t, 10*time.Second, primary.DialTimeout)
	assert.Equal(t, 30*time.Second, primary.Heartbeat)
	assert.Equal(t, 100*time.Millisecond, cfg.Sources["local"].Interval)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no sources",
			yaml:    `default: primary`,
			wantErr: "sources cannot be empty",
		},
		{
			name: "default not defined",
			yaml: `
default: missing
sources:
  primary:
    type: stub
`,
			wantErr: `default source "missing" not defined`,
		},
		{
			name: "missing type",
			yaml: `
sources:
  primary:
    url: wss://push.example.com
`,
			wantErr: "must specify type",
		},
		{
			name: "unknown type",
			yaml: `
sources:
  primary:
    type: carrier-pigeon
`,
			wantErr: "unsupported type",
		},
		{
			name: "bad duration",
			yaml: `
sources:
  primary:
    type: stub
    dial_timeout: soon
`,
			wantErr: "invalid dial_timeout",
		},
		{
			name: "non-positive duration",
			yaml: `
sources:
  primary:
    type: stub
    heartbeat: -5s
`,
			wantErr: "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSourceFactory(t *testing.T) {
	yaml := `
default: primary
sources:
  primary:
    type: stub
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	// Empty name falls back to the default source.
	factory, err := cfg.SourceFactory("")
	require.NoError(t, err)
	require.NotNil(t, factory)
	_, err = factory()
	assert.NoError(t, err)

	_, err = cfg.SourceFactory("missing")
	assert.ErrorContains(t, err, `feed source "missing" not defined`)
}
