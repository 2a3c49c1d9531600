package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/pathlight/internal/feedback"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	logOutput = io.Discard
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func pilotEnv(t *testing.T, endpoint string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PILOT_ENDPOINT", endpoint)
	t.Setenv("PILOT_RETRY_DELAY", "1ms")
	t.Setenv("PILOT_FEEDBACK_FILE", filepath.Join(dir, "notes.jsonl"))
	return dir
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("m4a-bytes"), 0o600))
	return path
}

func TestSendPrintsReplyAndStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "0", r.FormValue("tts"))
		_, _ = io.WriteString(w, `{"transcript":"volume up","reply":"Volume up.","action":{"name":"adjust_volume","args":{"delta":0.1}}}`)
	}))
	defer srv.Close()
	dir := pilotEnv(t, srv.URL+"/dispatch")

	out, status, err := runCmd(t, "", "send", "--no-play", "--no-tts", writeAudio(t, dir, "a.m4a"))
	require.NoError(t, err)

	assert.Contains(t, out, "You said: volume up")
	assert.Contains(t, out, "Reply: Volume up.")
	assert.Contains(t, out, "Action: adjust_volume (applied: true, volume 60%)")
	assert.Equal(t, "Recording…\nUploading…\nWaking server…\nUploading…\nDone\n", status)
}

func TestSendReportsBusy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	dir := pilotEnv(t, srv.URL+"/dispatch")

	_, status, err := runCmd(t, "", "send", "--no-play", writeAudio(t, dir, "a.m4a"))
	require.Error(t, err)
	assert.Contains(t, status, "Dispatch is busy. Try again in a moment.")
}

func TestShellCarriesSettingsAcrossUtterances(t *testing.T) {
	var mu sync.Mutex
	var ttsFlags []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ttsFlags = append(ttsFlags, r.FormValue("tts"))
		first := len(ttsFlags) == 1
		mu.Unlock()
		if first {
			_, _ = io.WriteString(w, `{"transcript":"speech off","reply":"Speech off.","action":{"name":"set_tts","args":{"enabled":false}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"transcript":"hello","reply":"Hi."}`)
	}))
	defer srv.Close()
	dir := pilotEnv(t, srv.URL+"/dispatch")
	a := writeAudio(t, dir, "a.m4a")
	b := writeAudio(t, dir, "b.m4a")

	out, _, err := runCmd(t, a+"\n\n"+filepath.Join(dir, "missing.m4a")+"\n"+b+"\n", "shell", "--no-play")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "0"}, ttsFlags)
	assert.Contains(t, out, "Reply: Hi.")
}

func TestSendSavesFeedbackNoteLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"transcript":"feedback: the ramp is blocked","reply":"Thanks, your feedback was saved.","action":{"name":"save_feedback","args":{"note":"the ramp is blocked"}}}`)
	}))
	defer srv.Close()
	dir := pilotEnv(t, srv.URL+"/dispatch")

	_, _, err := runCmd(t, "", "send", "--no-play", writeAudio(t, dir, "a.m4a"))
	require.NoError(t, err)

	items, err := feedback.LoadFile(filepath.Join(dir, "notes.jsonl"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "the ramp is blocked", items[0].Note)
}

func TestFeedbackList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/feedback", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]feedback.Item{{ID: "b", Note: "newer"}, {ID: "a", Note: "older"}})
	}))
	defer srv.Close()
	pilotEnv(t, srv.URL+"/dispatch")
	t.Setenv("PILOT_FEEDBACK_TOKEN", "secret")

	out, _, err := runCmd(t, "", "feedback", "list", "--limit", "5")
	require.NoError(t, err)

	var items []feedback.Item
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "newer", items[0].Note)
}

func TestInvalidVolumeRejected(t *testing.T) {
	pilotEnv(t, "http://localhost:1/dispatch")
	t.Setenv("PILOT_VOLUME", "1.5")

	_, _, err := runCmd(t, "", "feedback", "latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PILOT_VOLUME")
}
