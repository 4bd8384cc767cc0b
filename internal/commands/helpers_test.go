package commands

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/dagwatch/internal/config"
)

func TestParseConf(t *testing.T) {
	conf, err := parseConf("")
	require.NoError(t, err)
	assert.Nil(t, conf)

	conf, err = parseConf(`{"date":"2025-06-01","retries":3}`)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", conf["date"])
	assert.Equal(t, float64(3), conf["retries"])

	_, err = parseConf(`{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestServerFlagsMerge(t *testing.T) {
	flags := &serverFlags{url: "https://flag.example.com", dagID: "flag_dag"}
	cfg := &config.Config{URL: "https://file.example.com", DagID: "file_dag", Insecure: true, Timeout: "5s"}

	require.NoError(t, flags.merge(cfg))

	// Flags win over file values; unset flags fall back.
	assert.Equal(t, "https://flag.example.com", flags.url)
	assert.Equal(t, "flag_dag", flags.dagID)
	assert.True(t, flags.insecure)
	assert.Equal(t, 5*time.Second, flags.timeout)
}

func TestServerFlagsMerge_Defaults(t *testing.T) {
	flags := &serverFlags{url: "https://a.example.com", dagID: "d"}
	require.NoError(t, flags.merge(&config.Config{}))
	assert.Equal(t, 30*time.Second, flags.timeout)
}

func TestServerFlagsMerge_MissingURL(t *testing.T) {
	flags := &serverFlags{dagID: "d"}
	err := flags.merge(&config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
}

func TestServerFlagsMerge_MissingDag(t *testing.T) {
	flags := &serverFlags{url: "https://a.example.com"}
	err := flags.merge(&config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dag id is required")
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	err := &ExitError{Code: 2, Err: inner}
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := &ExitError{Code: 1}
	assert.Equal(t, "exit code 1", bare.Error())
}
