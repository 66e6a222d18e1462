package cmd

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/selfup/internal/backup"
	"github.com/adamancini/selfup/internal/lifecycle"
	"github.com/adamancini/selfup/internal/state"
	"github.com/adamancini/selfup/internal/update"
)

type testEnv struct {
	dir         string
	configPath  string
	installPath string
	stateDir    string
	backupDir   string
}

type result struct {
	stdout string
	stderr string
	err    error
	// exited is true when the command ended through a restart.
	exited bool
}

// newTestEnv writes a config pointing at manifestURL and isolates every
// user directory under a temp dir.
func newTestEnv(t *testing.T, manifestURL string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:         dir,
		configPath:  filepath.Join(dir, "config.yaml"),
		installPath: filepath.Join(dir, "bin", "selfup"),
		stateDir:    filepath.Join(dir, "state"),
		backupDir:   filepath.Join(dir, "backups"),
	}

	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, ".cache"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, ".local", "state"))
	t.Setenv("SELFUP_CONFIG", "")

	require.NoError(t, os.MkdirAll(filepath.Dir(env.installPath), 0755))
	require.NoError(t, os.WriteFile(env.installPath, []byte("old binary"), 0755))

	content := fmt.Sprintf(`source: manifest
manifest:
  url: %s
install_path: %s
state_dir: %s
backups:
  dir: %s
  keep: 2
log:
  level: error
`, manifestURL, env.installPath, env.stateDir, env.backupDir)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0644))

	setVersion(t, "1.0.0")
	return env
}

func setVersion(t *testing.T, v string) {
	t.Helper()
	prev := appVersion
	appVersion = v
	t.Cleanup(func() { appVersion = prev })
}

// run executes the root command on its own goroutine so a restart that ends
// the goroutine can be observed.
func (e *testEnv) run(stdin string, args ...string) result {
	return e.runContext(context.Background(), strings.NewReader(stdin), args...)
}

func (e *testEnv) runContext(ctx context.Context, stdin io.Reader, args ...string) result {
	var stdout, stderr bytes.Buffer
	var res result
	res.exited = true

	done := make(chan struct{})
	go func() {
		defer close(done)
		root := newRootCmd()
		root.SetArgs(append([]string{"--config", e.configPath}, args...))
		root.SetIn(stdin)
		root.SetOut(&stdout)
		root.SetErr(&stderr)
		res.err = root.ExecuteContext(ctx)
		res.exited = false
	}()
	<-done

	res.stdout = stdout.String()
	res.stderr = stderr.String()
	return res
}

// idleInput blocks every read until closed, like a terminal nobody types into.
type idleInput struct {
	once    sync.Once
	reading chan struct{}
	closed  chan struct{}
}

func newIdleInput(t *testing.T) *idleInput {
	in := &idleInput{reading: make(chan struct{}), closed: make(chan struct{})}
	t.Cleanup(func() { close(in.closed) })
	return in
}

func (in *idleInput) Read([]byte) (int, error) {
	in.once.Do(func() { close(in.reading) })
	<-in.closed
	return 0, io.EOF
}

type exitingRestarter struct{ calls int }

func (r *exitingRestarter) Restart() error {
	r.calls++
	runtime.Goexit()
	return nil
}

func stubRestarter(t *testing.T) *exitingRestarter {
	t.Helper()
	r := &exitingRestarter{}
	prev := newRestarter
	newRestarter = func(string) lifecycle.ProcessController { return r }
	t.Cleanup(func() { newRestarter = prev })
	return r
}

// releaseServer serves a latest.json for version and the binary payload.
func releaseServer(t *testing.T, version string, payload []byte, sum string) *httptest.Server {
	t.Helper()
	platform := update.Detect()
	if !platform.IsSupported() {
		t.Skipf("unsupported platform %s/%s", platform.OS, platform.Arch)
	}

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/latest.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(update.Manifest{
			Version: version,
			Notes:   "Bug fixes",
			PubDate: "2026-03-01T10:00:00Z",
			Platforms: map[string]update.ManifestPlatform{
				platform.ManifestKey(): {URL: server.URL + "/download", SHA256: sum},
			},
		})
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})
	return server
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, "https://example.invalid/latest.json")

	res := env.run("", "version", "-o", "json")
	require.NoError(t, res.err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, "1.0.0", info.Version)
	assert.False(t, info.Checked)
}

func TestVersionCheck(t *testing.T) {
	server := releaseServer(t, "2.0.0", []byte("new binary"), "")
	env := newTestEnv(t, server.URL+"/latest.json")

	res := env.run("", "version", "--check")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "selfup version 1.0.0")
	assert.Contains(t, res.stdout, "Latest version: 2.0.0 available")
	assert.Contains(t, res.stdout, "Bug fixes")

	setVersion(t, "2.0.0")
	res = env.run("", "version", "--check")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Already running latest version")
}

func TestUpdate_UpToDate(t *testing.T) {
	server := releaseServer(t, "1.0.0", []byte("same"), "")
	env := newTestEnv(t, server.URL+"/latest.json")

	res := env.run("", "update")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "You're already using the latest version.")
}

func TestUpdate_Declined(t *testing.T) {
	payload := []byte("new binary")
	server := releaseServer(t, "2.0.0", payload, sha256Hex(payload))
	env := newTestEnv(t, server.URL+"/latest.json")
	restarter := stubRestarter(t)

	res := env.run("n\n", "update")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Update to 2.0.0 is available!\n\nBug fixes")
	assert.Contains(t, res.stdout, "Update cancelled.")

	content, err := os.ReadFile(env.installPath)
	require.NoError(t, err)
	assert.Equal(t, "old binary", string(content))
	assert.Zero(t, restarter.calls)
}

func TestUpdate_InterruptedAtConfirmation(t *testing.T) {
	payload := []byte("new binary")
	server := releaseServer(t, "2.0.0", payload, sha256Hex(payload))
	env := newTestEnv(t, server.URL+"/latest.json")
	restarter := stubRestarter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := newIdleInput(t)
	go func() {
		<-in.reading
		cancel()
	}()

	res := env.runContext(ctx, in, "update")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Update or Cancel? [y/n]")
	assert.Contains(t, res.stdout, "Update cancelled.")
	assert.NotContains(t, res.stdout, "Downloading update...")

	content, err := os.ReadFile(env.installPath)
	require.NoError(t, err)
	assert.Equal(t, "old binary", string(content))
	assert.NoDirExists(t, env.backupDir)
	assert.Zero(t, restarter.calls)
}

func TestUpdate_UnstampedBuild(t *testing.T) {
	payload := []byte("new binary")
	server := releaseServer(t, "2.0.0", payload, sha256Hex(payload))
	env := newTestEnv(t, server.URL+"/latest.json")
	setVersion(t, "dev")

	res := env.run("y\n", "update")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "built without a version stamp")
	assert.NotContains(t, res.stdout, "Checking for updates...")

	res = env.run("", "version", "--check")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "built without a version stamp")

	res = env.run("", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "dev")
}

func TestUpdate_InstallsAndRestarts(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("installed binary is verified by running a shell script")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	payload := []byte("#!/bin/sh\necho selfup 2.0.0\n")
	server := releaseServer(t, "2.0.0", payload, sha256Hex(payload))
	env := newTestEnv(t, server.URL+"/latest.json")
	restarter := stubRestarter(t)

	res := env.run("", "update", "--yes")
	require.True(t, res.exited, "update should end in a restart: err=%v stdout=%s", res.err, res.stdout)
	assert.Equal(t, 1, restarter.calls)
	assert.Contains(t, res.stdout, "Downloading update...")
	assert.Contains(t, res.stdout, "Update installed! The app will restart.")

	content, err := os.ReadFile(env.installPath)
	require.NoError(t, err)
	assert.Equal(t, payload, content)

	st, err := state.NewStore(env.stateDir).Read()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "1.0.0", st.PreviousVersion)
	assert.Equal(t, "2.0.0", st.TargetVersion)
	assert.Equal(t, state.StatusInProgress, st.Status)

	backups, err := backup.NewManagerWithDir(env.backupDir).List()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "1.0.0", backups[0].Version)

	// The relaunched binary reports the finished update.
	setVersion(t, "2.0.0")
	res = env.run("", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Updated to 2.0.0 (previous: 1.0.0)")

	st, err = state.NewStore(env.stateDir).Read()
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestUpdate_ChecksumMismatch(t *testing.T) {
	server := releaseServer(t, "2.0.0", []byte("tampered"), sha256Hex([]byte("new binary")))
	env := newTestEnv(t, server.URL+"/latest.json")
	restarter := stubRestarter(t)

	res := env.run("", "update", "--yes")
	require.False(t, res.exited)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), lifecycle.ReasonDownloadFailed)
	assert.Contains(t, res.stdout, "[Updater Error] Error while checking for updates:")
	assert.Contains(t, res.stdout, "checksum")
	assert.Zero(t, restarter.calls)

	content, err := os.ReadFile(env.installPath)
	require.NoError(t, err)
	assert.Equal(t, "old binary", string(content))
}

func TestUpdate_CheckFails(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	env := newTestEnv(t, server.URL+"/latest.json")

	res := env.run("", "update")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), lifecycle.ReasonCheckFailed)
	assert.Contains(t, res.stdout, "Error while checking for updates:")
}

func TestPostUpdateMismatch(t *testing.T) {
	env := newTestEnv(t, "https://example.invalid/latest.json")
	require.NoError(t, state.NewStore(env.stateDir).Begin("1.0.0", "2.0.0", "attempt-1"))

	res := env.run("", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Update to 2.0.0 did not take effect, running 1.0.0.")
	assert.Contains(t, res.stderr, "selfup backup restore latest")
}

func TestBackupCommands(t *testing.T) {
	env := newTestEnv(t, "https://example.invalid/latest.json")

	res := env.run("", "backup", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No backups found.")

	manager := backup.NewManagerWithDir(env.backupDir)
	older, err := manager.Create(env.installPath, "1.0.0")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.installPath, []byte("newer binary"), 0755))
	_, err = manager.Create(env.installPath, "1.1.0")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.installPath, []byte("broken binary"), 0755))

	res = env.run("", "backup", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "1.0.0")
	assert.Contains(t, res.stdout, "1.1.0")

	res = env.run("n\n", "backup", "restore", "latest")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Restore cancelled.")

	res = env.run("", "backup", "restore", "latest", "--yes")
	require.NoError(t, res.err)
	content, err := os.ReadFile(env.installPath)
	require.NoError(t, err)
	assert.Equal(t, "newer binary", string(content))

	res = env.run("", "backup", "prune", "--keep", "1", "-o", "json")
	require.NoError(t, res.err)
	var pruned backup.PruneResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &pruned))
	require.Len(t, pruned.Deleted, 1)
	assert.Equal(t, older.ID, pruned.Deleted[0].ID)

	res = env.run("", "backup", "delete", "missing")
	assert.Error(t, res.err)
}

func TestCompleteBackupIDs(t *testing.T) {
	env := newTestEnv(t, "https://example.invalid/latest.json")
	created, err := backup.NewManagerWithDir(env.backupDir).Create(env.installPath, "1.0.0")
	require.NoError(t, err)

	complete := func(prefix string) string {
		var stdout bytes.Buffer
		root := newRootCmd()
		root.SetArgs([]string{"__complete", "backup", "restore", "--config", env.configPath, prefix})
		root.SetOut(&stdout)
		root.SetErr(io.Discard)
		require.NoError(t, root.Execute())
		return stdout.String()
	}

	out := complete("")
	assert.Contains(t, out, "latest\tmost recent backup")
	assert.Contains(t, out, created.ID+"\t1.0.0")

	out = complete(created.ID[:4])
	assert.NotContains(t, out, "latest")
	assert.Contains(t, out, created.ID)
}

func TestCompletionScript(t *testing.T) {
	env := newTestEnv(t, "https://example.invalid/latest.json")

	res := env.run("", "completion", "bash")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "selfup")

	res = env.run("", "completion", "powershell")
	assert.Error(t, res.err)
}

func TestInvalidConfig(t *testing.T) {
	env := newTestEnv(t, "https://example.invalid/latest.json")
	require.NoError(t, os.WriteFile(env.configPath, []byte("source: ftp\n"), 0644))

	res := env.run("", "version")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "validation errors")
}
