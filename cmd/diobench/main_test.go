//go:build linux

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	t.Log(out.String())
	return out.String(), err
}

func TestProbe(t *testing.T) {
	out, err := execute(t, "probe")
	require.NoError(t, err)
	assert.Contains(t, out, "auto:")
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{
		{"--merge=false"},
		{"--merge=true"},
		{"--merge=true", "--inflight", "3"},
		{"--merge=false", "--inflight", "2", "--backend", "aio"},
	} {
		args = append([]string{"run", "--dir", dir, "--count", "64", "--size", "512", "--depth", "8", "--json"}, args...)
		_, err := execute(t, args...)
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_Config(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "dio.yaml")
	require.NoError(t, os.WriteFile(config, []byte("backend: aio\ndepth: 4\nmerge_limit: 2048\n"), 0o600))
	out, err := execute(t, "run", "--dir", dir, "--count", "16", "--size", "512", "--merge", "--config", config, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"backend":"aio"`)
}

func TestRun_Invalid(t *testing.T) {
	_, err := execute(t, "run", "--count", "0")
	require.Error(t, err)
	_, err = execute(t, "run", "--backend", "epoll", "--count", "1")
	require.Error(t, err)
	_, err = execute(t, "--log-level", "loud", "probe")
	require.Error(t, err)
}
