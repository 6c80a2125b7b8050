package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunPutAskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{dataDirEnvVar: dir}

	var out, errOut bytes.Buffer
	code := run(&out, &errOut, []string{"put", "greeting", "hello"}, env)
	require.Equal(t, 0, code, errOut.String())

	out.Reset()
	code = run(&out, &errOut, []string{"ask", "greeting"}, env)
	require.Equal(t, 0, code, errOut.String())
	require.Equal(t, "hello", out.String())
}

func TestRunRemoveThenAskFails(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{dataDirEnvVar: dir}

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run(&out, &errOut, []string{"put", "k", "v"}, env))
	require.Equal(t, 0, run(&out, &errOut, []string{"remove", "k"}, env))

	errOut.Reset()
	code := run(&out, &errOut, []string{"ask", "k"}, env)
	require.NotEqual(t, 0, code)
	require.NotEmpty(t, errOut.String())
}

func TestRunCompactIsNoopWithoutSealedSegments(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{dataDirEnvVar: dir}

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run(&out, &errOut, []string{"put", "k", "v"}, env))
	require.Equal(t, 0, run(&out, &errOut, []string{"compact"}, env))
}

func TestRunDestroyRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{dataDirEnvVar: dir}

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run(&out, &errOut, []string{"put", "k", "v"}, env))
	require.Equal(t, 0, run(&out, &errOut, []string{"destroy"}, env))

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestRunMissingDataDirFails(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(&out, &errOut, []string{"put", "k", "v"}, map[string]string{})
	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), dataDirEnvVar)
}

func TestRunUnknownCommandFails(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{dataDirEnvVar: dir}

	var out, errOut bytes.Buffer
	code := run(&out, &errOut, []string{"frobnicate"}, env)
	require.Equal(t, 2, code)
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(&out, &errOut, nil, map[string]string{})
	require.Equal(t, 2, code)
	require.Contains(t, errOut.String(), "usage")
}
