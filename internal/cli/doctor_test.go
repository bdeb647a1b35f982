// Package cli — doctor_test.go contains unit tests for the doctor
// command's individual checks.
//
// The Docker check needs a live daemon and is exercised manually; the
// config, command and port checks run against temporary fixtures.
package cli

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nawedy/bokeh/internal/model"
)

// TestCheckConfig_Valid verifies that a well-formed config grades ok
// and yields the spec for the follow-up checks.
func TestCheckConfig_Valid(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "bokeh.json"), []byte(`{"command": "npm run dev"}`), 0644)
	require.NoError(t, err)

	spec, res := checkConfig(dir, "")

	require.NotNil(t, spec)
	assert.Equal(t, []string{"npm", "run", "dev"}, spec.Command)
	assert.Equal(t, checkOK, res.Status)
	assert.Contains(t, res.Detail, "bokeh.json")
}

// TestCheckConfig_Missing verifies that a directory without a config
// grades fail and yields no spec.
func TestCheckConfig_Missing(t *testing.T) {
	spec, res := checkConfig(t.TempDir(), "")

	assert.Nil(t, spec)
	assert.Equal(t, checkFail, res.Status)
	assert.Contains(t, res.Detail, "no bokeh config found")
}

// TestCheckConfig_Invalid verifies that an unparsable config grades
// fail rather than aborting the whole report.
func TestCheckConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "bokeh.json"), []byte(`{"command": [`), 0644)
	require.NoError(t, err)

	spec, res := checkConfig(dir, "")

	assert.Nil(t, spec)
	assert.Equal(t, checkFail, res.Status)
}

// TestCheckCommand_Resolvable verifies the ok grade using the test
// binary itself, which is always an existing executable. A command
// containing a path separator is checked directly instead of through
// PATH.
func TestCheckCommand_Resolvable(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	spec := &model.ServeSpec{Command: []string{exe}}
	res := checkCommand(spec)

	assert.Equal(t, checkOK, res.Status)
	assert.Contains(t, res.Detail, exe)
}

// TestCheckCommand_Missing verifies the fail grade for a command that
// cannot be resolved.
func TestCheckCommand_Missing(t *testing.T) {
	spec := &model.ServeSpec{Command: []string{"bokeh-no-such-command-5583"}}
	res := checkCommand(spec)

	assert.Equal(t, checkFail, res.Status)
	assert.Contains(t, res.Detail, "not found in PATH")
}

// TestCheckPort_Occupied verifies that a listening base port grades
// warn, since serve scans past it.
func TestCheckPort_Occupied(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	spec := &model.ServeSpec{Host: "127.0.0.1", BasePort: port}

	res := checkPort(spec)

	assert.Equal(t, checkWarn, res.Status)
	assert.Contains(t, res.Detail, "occupied")
}

// TestCheckPort_Free verifies the ok grade for a port nothing listens
// on. Binding and immediately closing a listener yields a port known
// to be free.
func TestCheckPort_Free(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	spec := &model.ServeSpec{Host: "127.0.0.1", BasePort: port}

	res := checkPort(spec)

	assert.Equal(t, checkOK, res.Status)
	assert.Contains(t, res.Detail, "free")
}

// TestCountFailed verifies the report summary counting.
func TestCountFailed(t *testing.T) {
	tests := []struct {
		name   string
		checks []checkResult
		want   int
	}{
		{
			name:   "no checks",
			checks: nil,
			want:   0,
		},
		{
			name: "warnings do not count",
			checks: []checkResult{
				{Name: "config", Status: checkOK},
				{Name: "port", Status: checkWarn},
				{Name: "docker", Status: checkWarn},
			},
			want: 0,
		},
		{
			name: "failures counted",
			checks: []checkResult{
				{Name: "config", Status: checkFail},
				{Name: "command", Status: checkFail},
				{Name: "docker", Status: checkOK},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countFailed(tt.checks))
		})
	}
}
