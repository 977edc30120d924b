package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"codeprobe/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.DBDSNEnv, "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml")))

	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := execute(t, "analyze", "6080604052")
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "12c1c6c1622ef139f7be5e75d22b0af0c26c294582e9a761716a7444d64bff39", report["sha256"])
	assert.Equal(t, float64(5), report["length"])
}

func TestAnalyzeCommandStrict(t *testing.T) {
	_, err := execute(t, "analyze", "--strict", "0x60")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_BYTECODE")
}

func TestAnalyzeCommandArgs(t *testing.T) {
	_, err := execute(t, "analyze")
	assert.Error(t, err)
}

func TestAnalyzeAddressWithoutNodes(t *testing.T) {
	_, err := execute(t, "analyze", "--address", "0x00000000000000000000000000000000000000aa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_CHAIN_SOURCE")
}

func TestProveAndVerifyCommands(t *testing.T) {
	out, err := execute(t, "prove", "--challenge", "deadbeef", "0x1234")
	require.NoError(t, err)

	proofJSON := strings.TrimSpace(out)
	assert.Contains(t, proofJSON, `"proof_hash":"3875c318e9822795eb0b25883ac97d592338bfb2edf1eb64d38df676a73f97b9"`)

	out, err = execute(t, "verify", "--challenge", "deadbeef", proofJSON)
	require.NoError(t, err)
	assert.Equal(t, "true", strings.TrimSpace(out))

	out, err = execute(t, "verify", "--challenge", "cafebabe", proofJSON)
	assert.True(t, errors.Is(err, errProofInvalid))
	assert.Equal(t, "false", strings.TrimSpace(out))
}

func TestReportCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reports.db")

	_, err := execute(t, "analyze", "--store", "--store-path", dbPath, "6080604052")
	require.NoError(t, err)

	out, err := execute(t, "report", "--store-path", dbPath, "12c1c6c1622ef139f7be5e75d22b0af0c26c294582e9a761716a7444d64bff39")
	require.NoError(t, err)
	assert.Contains(t, out, `"length": 5`)

	out, err = execute(t, "report", "--store-path", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 1`)
}
