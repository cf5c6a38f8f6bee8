package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/ren/internal/testutil"
)

var isolatedEnv = []string{
	"REN_GLOBAL_DATA_DIR",
	"REN_GLOBAL_CONFIG_DIR",
	"REN_GLOBAL_USER_ID",
	"REN_BACKEND_MODE",
	"REN_BACKEND_BASE_URL",
	"REN_LOCAL_DATABASE_PATH",
	"REN_LOCAL_REPLIER",
	"REN_MODEL_API_KEY",
	"REN_LOGGING_LEVEL",
	"REN_LOGGING_FORMAT",
	"REN_LOGGING_FILE",
	"REN_METRICS_ADDR",
	"GEMINI_API_KEY",
	"GOOGLE_API_KEY",
}

// setupCLI isolates the environment and writes a config file selecting the
// local backend with the echo replier.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, name := range isolatedEnv {
		t.Setenv(name, "")
	}
	t.Chdir(dir)

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := strings.Join([]string{
		"global:",
		"  data_dir: " + filepath.Join(dir, "data"),
		"  config_dir: " + filepath.Join(dir, "config"),
		"backend:",
		"  mode: local",
		"local:",
		"  replier: echo",
		"logging:",
		"  level: error",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func runCLI(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	return exitErr.Code
}

func TestSendThenHistory(t *testing.T) {
	cfgPath := setupCLI(t)

	out, err := runCLI(t, cfgPath, "", "send", "--user", "u1", "hello", "there")
	require.NoError(t, err)
	require.Contains(t, out, `You said "hello there"`)

	out, err = runCLI(t, cfgPath, "", "history", "--user", "u1")
	require.NoError(t, err)
	require.Contains(t, out, "WHEN")
	require.Contains(t, out, "hello there")
	require.Contains(t, out, "assistant")

	out, err = runCLI(t, cfgPath, "", "--json", "history", "--user", "u1", "--pages", "0")
	require.NoError(t, err)
	var payload struct {
		UserID   string `json:"user_id"`
		Messages []struct {
			Text   string `json:"text"`
			Sender string `json:"sender"`
		} `json:"messages"`
		Cursor struct {
			Exhausted bool `json:"exhausted"`
		} `json:"cursor"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Equal(t, "u1", payload.UserID)
	require.Len(t, payload.Messages, 2)
	require.Equal(t, "hello there", payload.Messages[0].Text)
	require.Equal(t, "user", payload.Messages[0].Sender)
	require.Equal(t, "assistant", payload.Messages[1].Sender)
	require.True(t, payload.Cursor.Exhausted)

	out, err = runCLI(t, cfgPath, "", "history", "--user", "someone-else")
	require.NoError(t, err)
	require.Contains(t, out, "No messages yet.")
}

func TestSendRequiresUser(t *testing.T) {
	cfgPath := setupCLI(t)

	_, err := runCLI(t, cfgPath, "", "send", "hello")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
}

func TestSendRejectsBlankMessage(t *testing.T) {
	cfgPath := setupCLI(t)

	_, err := runCLI(t, cfgPath, "", "send", "--user", "u1", "   ")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
}

func TestInvalidBackendFlag(t *testing.T) {
	cfgPath := setupCLI(t)

	_, err := runCLI(t, cfgPath, "", "--backend", "carrier-pigeon", "history", "--user", "u1")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
}

func TestStoredContextSuppliesUser(t *testing.T) {
	cfgPath := setupCLI(t)

	out, err := runCLI(t, cfgPath, "", "context", "set", "--user", "bob")
	require.NoError(t, err)
	require.Contains(t, out, "user:bob")

	_, err = runCLI(t, cfgPath, "", "send", "hi")
	require.NoError(t, err)

	out, err = runCLI(t, cfgPath, "", "context", "show")
	require.NoError(t, err)
	require.Contains(t, out, "bob (from context)")

	out, err = runCLI(t, cfgPath, "", "context", "show", "--user", "alice")
	require.NoError(t, err)
	require.Contains(t, out, "alice (from flag)")

	_, err = runCLI(t, cfgPath, "", "context", "clear")
	require.NoError(t, err)
	out, err = runCLI(t, cfgPath, "", "context", "show")
	require.NoError(t, err)
	require.Contains(t, out, "user:    (none)")
}

func TestContextSetNeedsAValue(t *testing.T) {
	cfgPath := setupCLI(t)

	_, err := runCLI(t, cfgPath, "", "context", "set")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
}

func TestCloseConversation(t *testing.T) {
	cfgPath := setupCLI(t)

	out, err := runCLI(t, cfgPath, "", "close", "--user", "u1")
	require.NoError(t, err)
	require.Contains(t, out, "No active conversation found")

	_, err = runCLI(t, cfgPath, "", "send", "--user", "u1", "hello")
	require.NoError(t, err)

	out, err = runCLI(t, cfgPath, "", "close", "--user", "u1")
	require.NoError(t, err)
	require.Contains(t, out, "Active conversation closed successfully")
}

func TestHTTPBackendCommands(t *testing.T) {
	cfgPath := setupCLI(t)
	api := testutil.NewFakeAPI(t)
	api.PerPage = 2
	api.Seed("u1",
		testutil.FakeMessage{Role: "user", Content: "first question"},
		testutil.FakeMessage{Role: "model", Content: "first answer"},
	)
	t.Setenv("REN_BACKEND_BASE_URL", api.URL)

	out, err := runCLI(t, cfgPath, "", "--backend", "http", "send", "--user", "u1", "hello")
	require.NoError(t, err)
	require.Equal(t, "echo: hello\n", out)

	out, err = runCLI(t, cfgPath, "", "--backend", "http", "history", "--user", "u1")
	require.NoError(t, err)
	require.Contains(t, out, "echo: hello")
	require.NotContains(t, out, "first question")
	require.Contains(t, out, "--pages")

	out, err = runCLI(t, cfgPath, "", "--backend", "http", "history", "--user", "u1", "--pages", "0")
	require.NoError(t, err)
	require.Contains(t, out, "first question")

	out, err = runCLI(t, cfgPath, "", "--backend", "http", "close", "--user", "u1")
	require.NoError(t, err)
	require.Contains(t, out, "Active conversation closed successfully")
	require.Len(t, api.Messages("u1"), 4)
}

func TestChatLineMode(t *testing.T) {
	cfgPath := setupCLI(t)

	_, err := runCLI(t, cfgPath, "", "send", "--user", "u1", "earlier")
	require.NoError(t, err)

	out, err := runCLI(t, cfgPath, "hello\n\n/more\n/quit\nnever sent\n", "chat", "--plain", "--user", "u1")
	require.NoError(t, err)
	require.Contains(t, out, "you: earlier")
	require.Contains(t, out, "-- start of conversation --")
	require.Contains(t, out, `REN: I hear you. You said "hello".`)
	require.NotContains(t, out, "never sent")
}

func TestChatLineModeMarksEarlierHistory(t *testing.T) {
	cfgPath := setupCLI(t)
	api := testutil.NewFakeAPI(t)
	api.PerPage = 2
	api.Seed("u1",
		testutil.FakeMessage{Role: "user", Content: "m1"},
		testutil.FakeMessage{Role: "model", Content: "m2"},
		testutil.FakeMessage{Role: "user", Content: "m3"},
		testutil.FakeMessage{Role: "model", Content: "m4"},
	)
	t.Setenv("REN_BACKEND_BASE_URL", api.URL)

	out, err := runCLI(t, cfgPath, "/more\n/quit\n", "--backend", "http", "chat", "--plain", "--user", "u1")
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"you: m3",
		"REN: m4",
		"-- earlier --",
		"you: m1",
		"REN: m2",
		"-- start of conversation --",
		"",
	}, "\n"), out)
}

func TestChatLineModeJSONEvents(t *testing.T) {
	cfgPath := setupCLI(t)

	out, err := runCLI(t, cfgPath, "hello\n", "--json", "chat", "--user", "u1")
	require.NoError(t, err)

	var types []string
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, dec.Decode(&ev))
		types = append(types, ev.Type)
	}
	require.Contains(t, types, "cursor.changed")
	require.Contains(t, types, "typing.changed")
	require.Contains(t, types, "timeline.changed")
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfgPath := setupCLI(t)
	t.Setenv("REN_MODEL_API_KEY", "super-secret-key-value")

	out, err := runCLI(t, cfgPath, "", "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, cfgPath)
	require.NotContains(t, out, "super-secret-key-value")
	require.Contains(t, out, "[REDACTED]")
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := runCLI(t, filepath.Join(t.TempDir(), "missing.yaml"), "", "version")
	require.NoError(t, err)
	require.Equal(t, "ren test\n", out)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, []string{"A", "LONGER"}, [][]string{{"wide cell", "x"}}))
	require.Equal(t, "A          LONGER\nwide cell  x\n", buf.String())
	require.Equal(t, "a b...", truncate("a\nb   cdefgh", 6))
}
