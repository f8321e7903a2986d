package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HimbeerserverDE/peerhost/server"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "peerhost.yml")
	if err := os.WriteFile(path, []byte(data), 0666); err != nil {
		t.Fatal("failed to write config:", err)
	}

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
port: 40500
bind: 127.0.0.1
max_peers: 8
channels: 3
outgoing_bandwidth: 65536
compression: true
mode: broadcast
limits:
  nested:
    key: deep
`)

	if err := LoadConfig(path); err != nil {
		t.Fatal("failed to load config:", err)
	}

	want := server.Config{
		Host:              "127.0.0.1",
		Port:              40500,
		MaxPeers:          8,
		Channels:          3,
		OutgoingBandwidth: 65536,
	}
	if diff := cmp.Diff(want, serverConfig(), cmpopts.IgnoreFields(server.Config{}, "Accept", "Log")); diff != "" {
		t.Errorf("server config mismatch (-want +got):\n%s", diff)
	}

	if !confBool("compression", false) {
		t.Error("compression not enabled")
	}
	if got := confString("mode", ModeEcho); got != ModeBroadcast {
		t.Errorf("want mode %s, got %s", ModeBroadcast, got)
	}
	if got := ConfKey("limits:nested:key"); got != "deep" {
		t.Errorf("want nested key deep, got %v", got)
	}
	if got := ConfKey("port:nested"); got != nil {
		t.Errorf("want nil below a scalar, got %v", got)
	}
	if got := ConfKey("missing:key"); got != nil {
		t.Errorf("want nil for missing key, got %v", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	if err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err != nil {
		t.Fatal("missing config file should not fail:", err)
	}

	want := server.Config{
		Port:     defaultPort,
		MaxPeers: defaultMaxPeers,
		Channels: defaultChannels,
	}
	if diff := cmp.Diff(want, serverConfig(), cmpopts.IgnoreFields(server.Config{}, "Accept", "Log")); diff != "" {
		t.Errorf("server config mismatch (-want +got):\n%s", diff)
	}

	if got := confString("mode", ModeEcho); got != ModeEcho {
		t.Errorf("want default mode %s, got %s", ModeEcho, got)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "port: [40000\n")

	if err := LoadConfig(path); err == nil {
		t.Fatal("invalid yaml was accepted")
	}
}
