package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	tt "github.com/gnoverse/impact/internal/types"
	"github.com/gnoverse/impact/verify"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Run(ctx context.Context, filePath string) (tt.Report, error) {
	args := m.Called(filePath)
	return args.Get(0).(tt.Report), args.Error(1)
}

const guardedProgram = `
name: guarded
variables: {x: int}
entry: start
targets: [error]
edges:
  - {from: start, to: mid, assume: "x > 0"}
  - {from: mid, to: error, assume: "x <= 0"}
`

func writeProgram(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunVerification(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	safe := writeProgram(t, dir, "safe.yaml", guardedProgram)
	unsafe := writeProgram(t, dir, "unsafe.yaml", guardedProgram)

	m := new(mockVerifier)
	m.On("Run", safe).Return(tt.Report{Filename: safe, Program: "guarded", Status: tt.StatusSafe}, nil)
	m.On("Run", unsafe).Return(tt.Report{Filename: unsafe, Program: "guarded", Status: tt.StatusUnsafe}, nil)

	var out bytes.Buffer
	err := runVerification(context.Background(), zap.NewNop(), m, []string{safe}, &out, false, "")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "safe: guarded")
	assert.Contains(t, out.String(), "1 file: 1 safe")

	out.Reset()
	err = runVerification(context.Background(), zap.NewNop(), m, []string{dir}, &out, false, "")
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Failed)
	assert.Contains(t, out.String(), "unsafe: guarded")
	assert.Contains(t, out.String(), "2 files: 1 safe, 1 unsafe")
}

func TestRunVerificationJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prog := writeProgram(t, dir, "prog.yaml", guardedProgram)

	m := new(mockVerifier)
	m.On("Run", prog).Return(tt.Report{}, errors.New("boom"))

	var out bytes.Buffer
	err := runVerification(context.Background(), zap.NewNop(), m, []string{prog}, &out, true, "")
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))

	var reports []tt.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, tt.StatusError, reports[0].Status)
	assert.Equal(t, "boom", reports[0].Error)

	jsonPath := filepath.Join(dir, "out.json")
	out.Reset()
	_ = runVerification(context.Background(), zap.NewNop(), m, []string{prog}, &out, true, jsonPath)
	assert.Empty(t, out.String())
	content, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"status": "error"`)
}

func TestRunVerificationMissingPath(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := runVerification(context.Background(), zap.NewNop(), new(mockVerifier),
		[]string{filepath.Join(t.TempDir(), "missing")}, &out, false, "")
	assert.Error(t, err)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestInitConfigurationFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	created, err := initConfigurationFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, created)

	config, err := verify.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, verify.DefaultConfig(), config)

	_, err = initConfigurationFile(path, false)
	assert.Error(t, err)
	_, err = initConfigurationFile(path, true)
	assert.NoError(t, err)
}

// The commands below read package-level flag variables, so these tests do
// not run in parallel.

func TestRunCFA(t *testing.T) {
	dir := t.TempDir()
	cfgFile = filepath.Join(dir, "absent.yaml")
	prog := writeProgram(t, dir, "prog.yaml", guardedProgram)

	var out bytes.Buffer
	require.NoError(t, runCFA(context.Background(), zap.NewNop(), prog, &out))
	assert.True(t, strings.HasPrefix(out.String(), `digraph "guarded" {`))
	assert.Contains(t, out.String(), `[label="[x > 0]"]`)

	err := runCFA(context.Background(), zap.NewNop(), filepath.Join(dir, "missing.yaml"), &out)
	assert.Error(t, err)
}

func TestRunART(t *testing.T) {
	dir := t.TempDir()
	cfgFile = filepath.Join(dir, "absent.yaml")
	prog := writeProgram(t, dir, "prog.yaml", guardedProgram)

	var out bytes.Buffer
	require.NoError(t, runART(context.Background(), zap.NewNop(), prog, &out))
	assert.True(t, strings.HasPrefix(out.String(), `digraph "art" {`))

	newick = true
	defer func() { newick = false }()
	out.Reset()
	require.NoError(t, runART(context.Background(), zap.NewNop(), prog, &out))
	assert.Equal(t, "((\"2@error\")\"1@mid\")\"0@start\";\n", out.String())
}

func TestExecuteInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impact.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"init", "--config", path})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Configuration file created: "+path)
	assert.FileExists(t, path)
}
