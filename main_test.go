package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-handler/internal/platform/platformtest"
)

type harness struct {
	srv    *platformtest.Server
	env    *env
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, vars map[string]string, stdin string) *harness {
	t.Helper()
	srv := platformtest.NewServer(t)
	h := &harness{srv: srv, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.env = &env{
		stdin:    strings.NewReader(stdin),
		stdout:   h.stdout,
		stderr:   h.stderr,
		getenv:   func(key string) string { return vars[key] },
		apiURL:   srv.APIURL(),
		location: time.UTC,
	}
	return h
}

var fullEnv = map[string]string{
	"SLACK_USER_TOKEN": "xoxp-test",
	"SLACK_CHANNEL_ID": "CDEFAULT",
}

func (h *harness) run(args ...string) int {
	return run(context.Background(), h.env, append([]string{"slack-handler"}, args...))
}

func TestNoCommandShowsHelp(t *testing.T) {
	h := newHarness(t, fullEnv, "")

	code := h.run()

	assert.Equal(t, ExitError, code)
	assert.Contains(t, h.stdout.String(), "slack-handler")
	assert.Contains(t, h.stdout.String(), "fetch")
	assert.Empty(t, h.srv.Calls())
}

func TestFetchHuman(t *testing.T) {
	h := newHarness(t, fullEnv, "")
	h.srv.Handle("conversations.history", `{"ok": true, "messages": [
		{"user": "U1", "text": "newest", "ts": "300"},
		{"user": "U2", "text": "oldest", "ts": "100"},
		{"user": "U1", "text": "middle", "ts": "200"}
	]}`)
	h.srv.Handle("users.info", `{"ok": true, "user": {"id": "U1", "name": "ann", "real_name": "Ann Example"}}`)

	code := h.run("fetch", "-n", "3")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, "\n📬 Latest 3 messages:\n\n"+
		"1. [1970-01-01 00:01:40] Ann Example:\n   oldest\n\n"+
		"2. [1970-01-01 00:03:20] Ann Example:\n   middle\n\n"+
		"3. [1970-01-01 00:05:00] Ann Example:\n   newest\n\n", h.stdout.String())
	assert.Len(t, h.srv.CallsTo("users.info"), 3)
	assert.Equal(t, "3", h.srv.CallsTo("conversations.history")[0].Form.Get("limit"))
}

func TestFetchJSONWithLookupFallback(t *testing.T) {
	h := newHarness(t, fullEnv, "")
	h.srv.Handle("conversations.history", `{"ok": true, "messages": [
		{"user": "U9", "text": "who am i", "ts": "garbage"}
	]}`)
	h.srv.Handle("users.info", `{"ok": false, "error": "user_not_found"}`)

	code := h.run("fetch", "--json", "-c", "C7")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.JSONEq(t, `[{"user":"U9","text":"who am i","timestamp":"garbage"}]`, h.stdout.String())
	assert.Equal(t, "C7", h.srv.CallsTo("conversations.history")[0].Form.Get("channel"))
}

func TestFetchDefaultLimit(t *testing.T) {
	h := newHarness(t, fullEnv, "")
	h.srv.Handle("conversations.history", `{"ok": true, "messages": []}`)

	require.Equal(t, ExitSuccess, h.run("fetch"), h.stderr.String())
	assert.Equal(t, "10", h.srv.CallsTo("conversations.history")[0].Form.Get("limit"))
	assert.Contains(t, h.stdout.String(), "Latest 0 messages")
}

func TestFetchZeroLimit(t *testing.T) {
	h := newHarness(t, fullEnv, "")

	code := h.run("fetch", "--limit", "0", "--json")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, "[]\n", h.stdout.String())
	assert.Empty(t, h.srv.Calls())
}

func TestFetchNegativeLimit(t *testing.T) {
	h := newHarness(t, fullEnv, "")

	code := h.run("fetch", "--limit", "-1")

	assert.Equal(t, ExitError, code)
	assert.Contains(t, h.stderr.String(), "❌ Error: limit must not be negative")
	assert.Empty(t, h.srv.Calls())
}

func TestFetchAPIError(t *testing.T) {
	h := newHarness(t, fullEnv, "")
	h.srv.Handle("conversations.history", `{"ok": false, "error": "channel_not_found"}`)

	code := h.run("fetch", "-c", "CNOPE")

	assert.Equal(t, ExitError, code)
	assert.Equal(t, "❌ Error: Error fetching messages: channel_not_found\n", h.stderr.String())
	assert.Empty(t, h.stdout.String())
}

func TestFetchMissingDefaultChannel(t *testing.T) {
	h := newHarness(t, map[string]string{"SLACK_USER_TOKEN": "xoxp-test"}, "")

	code := h.run("fetch")

	assert.Equal(t, ExitError, code)
	assert.Contains(t, h.stderr.String(), "SLACK_CHANNEL_ID environment variable not set")
	assert.Empty(t, h.srv.Calls())
}

func TestMissingTokenFailsEveryCommand(t *testing.T) {
	commands := [][]string{
		{"fetch"},
		{"post", "hello"},
		{"channels"},
	}

	for _, args := range commands {
		t.Run(args[0], func(t *testing.T) {
			h := newHarness(t, map[string]string{"SLACK_CHANNEL_ID": "C1"}, "")

			code := h.run(args...)

			assert.Equal(t, ExitError, code)
			assert.Contains(t, h.stderr.String(), "❌ Error: SLACK_USER_TOKEN environment variable not set")
			assert.Empty(t, h.srv.Calls())
		})
	}
}

func TestPostFromArgs(t *testing.T) {
	h := newHarness(t, fullEnv, "")
	h.srv.Handle("chat.postMessage", `{"ok": true, "channel": "C42", "ts": "1700000300.000200"}`)

	code := h.run("post", "-c", "C42", "Hello", "team")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, "✅ Message posted successfully!\n   Timestamp: 1700000300.000200\n   Channel: C42\n", h.stdout.String())
	calls := h.srv.CallsTo("chat.postMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello team", calls[0].Form.Get("text"))
	assert.Equal(t, "C42", calls[0].Form.Get("channel"))
}

func TestPostFlagsAfterMessage(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantText    string
		wantChannel string
		wantJSON    bool
	}{
		{"short flag", []string{"post", "Hello", "-c", "C42"}, "Hello", "C42", false},
		{"long flag with value", []string{"post", "Hello", "team", "--channel=C43"}, "Hello team", "C43", false},
		{"flag between words", []string{"post", "Hello", "--channel", "C44", "team"}, "Hello team", "C44", false},
		{"json after words", []string{"post", "Hello", "--json"}, "Hello", "CDEFAULT", true},
		{"overrides leading flag", []string{"post", "-c", "C1", "Hello", "-c", "C45"}, "Hello", "C45", false},
		{"literal after double dash", []string{"post", "Hello", "--", "-c", "C46"}, "Hello -c C46", "CDEFAULT", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fullEnv, "")
			h.srv.Handle("chat.postMessage", `{"ok": true, "channel": "CX", "ts": "1.2"}`)

			code := h.run(tt.args...)

			require.Equal(t, ExitSuccess, code, h.stderr.String())
			calls := h.srv.CallsTo("chat.postMessage")
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantText, calls[0].Form.Get("text"))
			assert.Equal(t, tt.wantChannel, calls[0].Form.Get("channel"))
			if tt.wantJSON {
				assert.JSONEq(t, `{"timestamp":"1.2","channel":"CX"}`, h.stdout.String())
			} else {
				assert.Contains(t, h.stdout.String(), "Message posted successfully")
			}
		})
	}
}

func TestPostTrailingChannelWithoutValue(t *testing.T) {
	h := newHarness(t, fullEnv, "")

	code := h.run("post", "Hello", "-c")

	assert.Equal(t, ExitError, code)
	assert.Contains(t, h.stderr.String(), "flag needs an argument: -c")
	assert.Empty(t, h.srv.Calls())
}

func TestPostFromStdin(t *testing.T) {
	h := newHarness(t, fullEnv, "  line one\nline two\n\n")
	h.srv.Handle("chat.postMessage", `{"ok": true, "channel": "CDEFAULT", "ts": "1.2"}`)

	code := h.run("post", "--json")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.JSONEq(t, `{"timestamp":"1.2","channel":"CDEFAULT"}`, h.stdout.String())
	assert.Equal(t, "line one\nline two", h.srv.CallsTo("chat.postMessage")[0].Form.Get("text"))
}

func TestPostEmptyMessage(t *testing.T) {
	for name, stdin := range map[string]string{"empty": "", "whitespace": " \n\t \n"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, fullEnv, stdin)

			code := h.run("post")

			assert.Equal(t, ExitError, code)
			assert.Equal(t, "❌ Error: No message provided\n", h.stderr.String())
			assert.Empty(t, h.srv.Calls())
		})
	}
}

func TestPostEmptyMessageBeforeConfig(t *testing.T) {
	h := newHarness(t, nil, "")

	code := h.run("post", " ")

	assert.Equal(t, ExitError, code)
	assert.Contains(t, h.stderr.String(), "No message provided")
	assert.Empty(t, h.srv.Calls())
}

func TestChannelsJSON(t *testing.T) {
	h := newHarness(t, map[string]string{"SLACK_USER_TOKEN": "xoxp-test"}, "")
	h.srv.Handle("conversations.list", `{"ok": true, "channels": [
		{"id": "C1", "name": "general"},
		{"id": "C2", "name": "random"}
	]}`)

	code := h.run("channels", "--json")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.JSONEq(t, `[{"name":"general","id":"C1"},{"name":"random","id":"C2"}]`, h.stdout.String())
}

func TestChannelsHuman(t *testing.T) {
	h := newHarness(t, fullEnv, "")
	h.srv.Handle("conversations.list", `{"ok": true, "channels": [{"id": "C1", "name": "general"}]}`)

	require.Equal(t, ExitSuccess, h.run("channels"), h.stderr.String())
	assert.Equal(t, "\n📋 Available channels (1):\n\n  • general: C1\n", h.stdout.String())
}

func TestConflictingFormats(t *testing.T) {
	h := newHarness(t, fullEnv, "")

	code := h.run("channels", "--json", "--yaml")

	assert.Equal(t, ExitError, code)
	assert.Contains(t, h.stderr.String(), "mutually exclusive")
	assert.Empty(t, h.srv.Calls())
}

func TestEnvFileFlag(t *testing.T) {
	path := t.TempDir() + "/creds.env"
	require.NoError(t, os.WriteFile(path, []byte("SLACK_USER_TOKEN=xoxp-file\n"), 0644))
	h := newHarness(t, nil, "")
	h.srv.Handle("conversations.list", `{"ok": true, "channels": []}`)

	code := h.run("--env-file", path, "channels", "--json")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, "[]\n", h.stdout.String())
}

func TestMessageTextReadError(t *testing.T) {
	e := &env{stdin: failingReader{}, stderr: io.Discard}

	_, err := e.messageText(nil)
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
