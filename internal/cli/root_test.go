package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/matchstore"
	"github.com/park285/padel-scoreboard/internal/matchsvc"
)

type harness struct {
	t      *testing.T
	dir    string
	opener Opener
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	svc := matchsvc.New(matchstore.NewMemoryStore(), export.NewFileSink(filepath.Join(dir, "exports")), matchsvc.Config{})
	backend := NewLocalBackend(svc)
	return &harness{
		t:   t,
		dir: dir,
		opener: func(ctx context.Context, opts *RootOptions) (Backend, func() error, error) {
			return backend, func() error { return nil }, nil
		},
	}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCommand(h.opener)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func (h *harness) start(players ...string) string {
	h.t.Helper()
	out, err := h.run(append([]string{"--format", "json", "start"}, players...)...)
	require.NoError(h.t, err)
	var resp struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal([]byte(out), &resp))
	require.Equal(h.t, "ok", resp.Status)
	require.NotEmpty(h.t, resp.Data["match_id"])
	return resp.Data["match_id"]
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "padelctl", cmd.Use)

	for _, name := range []string{"start", "point", "undo", "end", "show", "export", "verify", "scoreboard", "watch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("server"))
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("--format", "xml", "start", "A", "B")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPointAndShow(t *testing.T) {
	h := newHarness(t)
	id := h.start("Ana", "Bea")

	out, err := h.run("point", id, "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana vs Bea")
	assert.Contains(t, out, "гейм 1-0")

	_, err = h.run("point", id, "1")
	require.NoError(t, err)
	out, err = h.run("show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "сеты 0-0 | гейм 1-1 | in_progress")
}

func TestPointRejectsBadSide(t *testing.T) {
	h := newHarness(t)
	id := h.start("A", "B")
	_, err := h.run("point", id, "2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUnknownMatchFails(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("--format", "json", "show", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func TestVerifyReportsDriftAfterUndo(t *testing.T) {
	h := newHarness(t)
	id := h.start("A", "B")
	for i := 0; i < 4; i++ {
		_, err := h.run("point", id, "0")
		require.NoError(t, err)
	}

	out, err := h.run("verify", id)
	require.NoError(t, err)
	assert.Contains(t, out, "4 очков")

	_, err = h.run("undo", id)
	require.NoError(t, err)
	out, err = h.run("verify", id)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Расхождение")
	assert.NotContains(t, out, "Error:")
}

func TestEndExportsAndBlocksPoints(t *testing.T) {
	h := newHarness(t)
	id := h.start("A", "B")

	out, err := h.run("end", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Экспортировано:")
	_, statErr := os.Stat(filepath.Join(h.dir, "exports", export.ObjectKey(id)))
	require.NoError(t, statErr)

	_, err = h.run("point", id, "0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestExportAndScoreboardWriteFiles(t *testing.T) {
	h := newHarness(t)
	id := h.start("A", "B")
	_, err := h.run("point", id, "1")
	require.NoError(t, err)

	snapPath := filepath.Join(h.dir, "snap.json")
	_, err = h.run("export", id, "-o", snapPath)
	require.NoError(t, err)
	raw, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	var snap export.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, id, snap.MatchID)
	assert.Equal(t, "0-1", snap.CurrentGameScore)
	assert.Len(t, snap.Events, 1)

	pngPath := filepath.Join(h.dir, "board.png")
	_, err = h.run("scoreboard", id, "--output", pngPath)
	require.NoError(t, err)
	img, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))
}

func TestWatchRequiresLive(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("watch", "m1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
