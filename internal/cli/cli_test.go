package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/pkg/tokenizer"
)

type cannedProvider struct {
	reply string
	err   error
}

func (p *cannedProvider) Complete(_ context.Context, _ *ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &ports.CompletionResponse{Content: p.reply, FinishReason: "stop"}, nil
}

type harness struct {
	t        *testing.T
	provider *cannedProvider
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RINGIL_DATABASE_PATH", filepath.Join(dir, "ringil.db"))
	t.Setenv("RINGIL_EXPORT_BACKEND", "sqlite")
	t.Setenv("RINGIL_MODELS_DEFAULT_API_KEY", "sk-test")
	t.Setenv("RINGIL_SESSION_LOCATION", "UTC")
	return &harness{t: t, provider: &cannedProvider{reply: "Lisbon."}, dir: dir}
}

func (h *harness) run(stdin string, args ...string) (stdout, stderr string, err error) {
	h.t.Helper()
	cmd := NewRootCommand(
		WithCompletion(h.provider),
		WithTokenCounter(func(string) tokenizer.Counter { return tokenizer.Heuristic{} }),
	)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, _, err := h.run("", args...)
	require.NoError(h.t, err, "ringil %s", strings.Join(args, " "))
	return out
}

var idPattern = regexp.MustCompile(`\[(\d+)\]`)

func (h *harness) firstID() int64 {
	h.t.Helper()
	m := idPattern.FindStringSubmatch(h.mustRun("chats", "list"))
	require.Len(h.t, m, 2)
	id, err := strconv.ParseInt(m[1], 10, 64)
	require.NoError(h.t, err)
	return id
}

func TestSendAndList(t *testing.T) {
	h := newHarness(t)

	out, stderr, err := h.run("", "send", "--raw", "What is the capital of Portugal?")
	require.NoError(t, err)
	assert.Equal(t, "Lisbon.\n", out)
	assert.Contains(t, stderr, "What is the capital of Portuga...")

	list := h.mustRun("chats", "list")
	assert.Contains(t, list, "What is the capital of Portuga...")
	assert.Contains(t, list, "3 messages")

	id := h.firstID()
	out = h.mustRun("send", "--raw", "--chat", strconv.FormatInt(id, 10), "And Spain?")
	assert.Equal(t, "Lisbon.\n", out)
	assert.Contains(t, h.mustRun("chats", "list"), "5 messages")
}

func TestSend_ProviderError(t *testing.T) {
	h := newHarness(t)
	h.provider.err = &apperr.ProviderError{StatusCode: 401, Body: "invalid key"}

	_, stderr, err := h.run("", "send", "Hi")
	require.Error(t, err)
	assert.Contains(t, stderr, "Error: API error: 401 Unauthorized - invalid key")

	// the note was stored with the conversation
	id := h.firstID()
	out := h.mustRun("chats", "show", "--raw", strconv.FormatInt(id, 10))
	assert.Contains(t, out, "_Error: API error: 401 Unauthorized - invalid key_")
}

func TestChatsList_Paging(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 7; i++ {
		h.mustRun("chats", "new")
	}

	out := h.mustRun("chats", "list")
	assert.Len(t, idPattern.FindAllString(out, -1), 5)
	assert.Contains(t, out, "Showing 5 of 7 conversations")

	out = h.mustRun("chats", "list", "--all")
	assert.Len(t, idPattern.FindAllString(out, -1), 7)
	assert.NotContains(t, out, "Showing")

	out = h.mustRun("chats", "list", "--offset", "6")
	assert.Len(t, idPattern.FindAllString(out, -1), 1)
}

func TestChatsSearch(t *testing.T) {
	h := newHarness(t)
	h.mustRun("send", "Recipe for bread")
	h.mustRun("send", "Weather tomorrow")

	out := h.mustRun("chats", "search", "RECIPE")
	assert.Contains(t, out, "Recipe for bread")
	assert.NotContains(t, out, "Weather tomorrow")

	// assistant text is searched too
	out = h.mustRun("chats", "search", "lisbon", "--all")
	assert.Len(t, idPattern.FindAllString(out, -1), 2)

	assert.Contains(t, h.mustRun("chats", "search", "zzz"), "No conversations found.")
}

func TestChatsShowRenameExportDelete(t *testing.T) {
	h := newHarness(t)
	h.mustRun("send", "Hi there")
	id := h.firstID()
	idArg := strconv.FormatInt(id, 10)

	out := h.mustRun("chats", "show", "--raw", idArg)
	assert.Contains(t, out, "# Hi there")
	assert.Contains(t, out, "Model: GPT-4")
	assert.Contains(t, out, "### **Assistant**\nLisbon.")
	assert.Regexp(t, `~\d+ prompt tokens for GPT-4`, out)

	out = h.mustRun("chats", "rename", idArg, "Greetings")
	assert.Contains(t, out, `Renamed `+idArg+` to "Greetings"`)

	exportDir := filepath.Join(h.dir, "exports")
	require.NoError(t, os.Mkdir(exportDir, 0o755))
	out = h.mustRun("chats", "export", idArg, "-o", exportDir)
	path := filepath.Join(exportDir, "chat-greetings-"+idArg+".md")
	assert.Contains(t, out, path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# Greetings\n"))

	assert.Equal(t, string(content), h.mustRun("chats", "export", idArg, "-o", "-"))

	out, _, err = h.run("n\n", "chats", "delete", idArg)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")

	out, _, err = h.run("y\n", "chats", "delete", idArg)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted conversation "+idArg)

	_, _, err = h.run("", "chats", "show", idArg)
	assert.True(t, apperr.IsNotFound(err))
}

func TestChats_InvalidID(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{
		{"chats", "show", "abc"},
		{"chats", "export", "0"},
		{"chats", "delete", "1.5", "--yes"},
		{"send", "--chat", "x", "hi"},
	} {
		_, _, err := h.run("", args...)
		assert.ErrorContains(t, err, "invalid conversation id", strings.Join(args, " "))
	}
}

func TestModelsCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("models", "list")
	assert.Contains(t, out, "default-gpt4")
	assert.Contains(t, out, "set")
	assert.NotContains(t, out, "sk-test", "keys are never printed")

	out = h.mustRun("models", "add", "--id", "grok", "--name", "Grok",
		"--endpoint", "https://api.x.ai/v1/chat/completions", "--key", "xai-key",
		"--model", "grok-2-latest", "--temperature", "1", "--max-tokens", "500")
	assert.Contains(t, out, "Saved model Grok (grok)")

	_, _, err := h.run("", "models", "add", "--name", "Broken", "--temperature", "5")
	assert.ErrorContains(t, err, "temperature")

	out = h.mustRun("models", "use", "grok")
	assert.Contains(t, out, "Using Grok by default")

	h.mustRun("send", "Hi")
	id := h.firstID()
	out = h.mustRun("chats", "show", "--raw", strconv.FormatInt(id, 10))
	assert.Contains(t, out, "Model: Grok")

	out = h.mustRun("models", "remove", "default-gpt4")
	assert.Contains(t, out, "Removed model default-gpt4")

	_, _, err = h.run("", "models", "remove", "grok")
	assert.True(t, apperr.IsConfig(err), "the last configuration must stay")

	_, _, err = h.run("", "models", "use", "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestSend_ModelFlag(t *testing.T) {
	h := newHarness(t)
	h.mustRun("models", "add", "--id", "grok", "--name", "Grok",
		"--endpoint", "https://api.x.ai/v1/chat/completions", "--key", "xai-key")

	h.mustRun("send", "--model", "grok", "Hi")
	id := h.firstID()
	out := h.mustRun("chats", "show", "--raw", strconv.FormatInt(id, 10))
	assert.Contains(t, out, "Model: Grok")
}

func TestMigrate(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("migrate")
	assert.Contains(t, out, "is up to date")

	// running again is a no-op
	assert.Contains(t, h.mustRun("migrate"), "is up to date")
}

func TestInvalidConfiguration(t *testing.T) {
	h := newHarness(t)
	t.Setenv("RINGIL_EXPORT_BACKEND", "s3")

	_, _, err := h.run("", "chats", "list")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRenderingSkipsNonTerminals(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, "[1] Title", styled(&buf, titleStyle, "[1] Title"))
	assert.Equal(t, "# Heading\n", renderMarkdown(&buf, "# Heading\n", false))
	assert.False(t, isTerminal(&buf))
}
