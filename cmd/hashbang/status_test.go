package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/keepmind9/hashbang/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStatusAddr(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		addr, err := resolveStatusAddr("10.0.0.1:9180", "/does/not/exist.yaml")
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1:9180", addr)
	})

	t.Run("from config", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", validConfig+"status:\n  listen: \":9180\"\n")
		addr, err := resolveStatusAddr("", path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9180", addr)
	})

	t.Run("disabled in config", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", validConfig)
		_, err := resolveStatusAddr("", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status server is disabled")
	})

	t.Run("bad config", func(t *testing.T) {
		_, err := resolveStatusAddr("", "/does/not/exist.yaml")
		assert.Error(t, err)
	})
}

func TestPrintStatus(t *testing.T) {
	report := &core.StatusReport{
		Snapshot: core.Snapshot{Connected: []string{"libera"}, Dead: []string{"oftc"}},
		Instances: []core.InstanceStatus{
			{Name: "libera", Protocol: core.ProtocolIRC, State: core.StateConnected, RunID: "abc"},
			{Name: "oftc", Protocol: core.ProtocolIRC, State: core.StateDead, RunID: "def"},
			{Name: "tg", Protocol: core.ProtocolTelegram, State: core.StateStopped},
		},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printStatus(&buf, report, false))
		assert.Contains(t, buf.String(), "  - Connected: 1\n")
		assert.Contains(t, buf.String(), "  - Dead:      1\n")
		assert.Contains(t, buf.String(), "  - libera (irc): connected [abc]\n")
		assert.Contains(t, buf.String(), "  - tg (telegram): stopped\n")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printStatus(&buf, report, true))

		var decoded core.StatusReport
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, report.Connected, decoded.Connected)
		assert.Equal(t, report.Instances, decoded.Instances)
	})
}

func TestStatusCommandFlags(t *testing.T) {
	for _, name := range []string{"addr", "config", "json"} {
		assert.NotNil(t, statusCmd.Flags().Lookup(name), "status command should have %s flag", name)
	}
}
