package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entireio/ai-barometer/internal/testutil/cmdtest"
)

func TestNewRootCmdHasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"install", "hook", "hydrate", "retry", "status", "version"} {
		require.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRunStatusNotARepo(t *testing.T) {
	var buf bytes.Buffer
	err := runStatus(context.Background(), &buf, t.TempDir(), t.TempDir())
	require.NoError(t, err)
	require.Contains(t, buf.String(), "not a git repository")
}

func TestRunStatusInRepo(t *testing.T) {
	repo := t.TempDir()
	cmdtest.InitRepo(t, repo)
	cmdtest.WriteAndCommit(t, repo, "a.txt", "hello", "init")

	var buf bytes.Buffer
	err := runStatus(context.Background(), &buf, t.TempDir(), repo)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "enabled")
	require.Contains(t, buf.String(), "no note")
	require.Contains(t, buf.String(), "pending: 0")
}

func TestInstallHookShimWritesExecutableFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, installHookShim(home))

	path := filepath.Join(home, hooksDirName, hookFileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, hookShimContent, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestInstallHookShimOverwritesForeignHook(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, hooksDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, hookFileName), []byte("#!/bin/sh\necho someone-elses-hook\n"), 0o755))

	require.NoError(t, installHookShim(home))

	data, err := os.ReadFile(filepath.Join(dir, hookFileName))
	require.NoError(t, err)
	require.Equal(t, hookShimContent, string(data))
}
