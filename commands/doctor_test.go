package commands

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/mobile-next/handsfree/config"
	"github.com/mobile-next/handsfree/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLookPath(found ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestCheckTools_PicksFirstFoundCandidate(t *testing.T) {
	specs := []toolSpec{
		{purpose: "speech", names: []string{"espeak-ng", "espeak", "spd-say"}, required: true},
		{purpose: "input", names: []string{"xdotool"}, required: true},
	}

	got := checkTools(specs, fakeLookPath("espeak"))

	want := []ToolCheck{
		{Name: "espeak", Purpose: "speech", Path: "/usr/bin/espeak", Found: true, Required: true},
		{Name: "xdotool", Purpose: "input", Required: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("checkTools() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"xdotool"}, missingRequired(got))
}

func TestRequiredTools_FollowsBackend(t *testing.T) {
	tests := []struct {
		backend   string
		chromeURL string
		required  []string
	}{
		{devices.BackendXdotool, "", []string{"xdotool"}},
		{devices.BackendAndroid, "", []string{"adb"}},
		{devices.BackendChrome, "", []string{"google-chrome"}},
		{devices.BackendChrome, "ws://localhost:9222", nil},
		{devices.BackendDryRun, "", nil},
	}

	for _, tt := range tests {
		cfg := config.Default()
		cfg.Device.Backend = tt.backend
		cfg.Device.ChromeURL = tt.chromeURL
		cfg.Speech.Enabled = false

		var required []string
		for _, spec := range requiredTools(cfg, "linux") {
			if spec.required {
				required = append(required, spec.names[0])
			}
		}
		if diff := cmp.Diff(tt.required, required); diff != "" {
			t.Errorf("requiredTools(%q, %q) mismatch (-want +got):\n%s", tt.backend, tt.chromeURL, diff)
		}
	}
}

func TestRequiredTools_SpeechCommandOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.Command = "festival"

	for _, spec := range requiredTools(cfg, "darwin") {
		if spec.purpose == "speech" {
			assert.Equal(t, []string{"festival"}, spec.names)
			assert.True(t, spec.required)
			return
		}
	}
	t.Fatal("no speech tool listed")
}

func TestParseOSRelease(t *testing.T) {
	data := "NAME=\"Ubuntu\"\nPRETTY_NAME=\"Ubuntu 24.04 LTS\"\nID=ubuntu\n"
	if got := parseOSRelease(data); got != "Ubuntu 24.04 LTS" {
		t.Errorf("parseOSRelease() = %q, want %q", got, "Ubuntu 24.04 LTS")
	}
	assert.Empty(t, parseOSRelease("ID=alpine\n"))
}

func TestProbeSidecars(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	// a port nobody listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := config.Default()
	cfg.Gesture.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Voice.VoskURL = "ws://" + deadAddr
	cfg.Classifier.Enabled = false

	checks := probeSidecars(context.Background(), cfg)
	require.Len(t, checks, 2)

	assert.Equal(t, "gesture", checks[0].Name)
	assert.True(t, checks[0].Reachable, checks[0].Error)
	assert.Equal(t, "voice", checks[1].Name)
	assert.False(t, checks[1].Reachable)
	assert.Contains(t, checks[1].Error, "failed to connect")
}

func TestProbeSidecars_SkipsFileInputs(t *testing.T) {
	cfg := config.Default()
	cfg.Gesture.File = "frames.jsonl"
	cfg.Voice.Lines = "-"

	assert.Empty(t, probeSidecars(context.Background(), cfg))
}
