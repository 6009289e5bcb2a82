package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenarioFile(t, `
name: add
description: adds two numbers
source: "!1 !2 !add !print"
expect:
  stdout: "3\n"
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "add", scenario.Name)
	assert.Equal(t, "!1 !2 !add !print", scenario.Source)
	require.NotNil(t, scenario.Expect.Stdout)
	assert.Equal(t, "3\n", *scenario.Expect.Stdout)
}

func TestLoadScenario_ResolvesProgramPath(t *testing.T) {
	dir := t.TempDir()
	progPath := filepath.Join(dir, "prog.dq")
	require.NoError(t, os.WriteFile(progPath, []byte("!0 !exit"), 0644))

	scenPath := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(scenPath, []byte(`
name: file-program
description: program loaded from a sibling file
program: prog.dq
expect:
  exit_code: 0
`), 0644))

	scenario, err := LoadScenario(scenPath)
	require.NoError(t, err)
	assert.Equal(t, progPath, scenario.Program)
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenarioFile(t, `
name: typo
description: catches field typos
source: "!0 !exit"
expects:
  exit_code: 0
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsource: \"!0 !exit\"\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsource: \"!0 !exit\"\n",
			wantErr: "description is required",
		},
		{
			name:    "missing program and source",
			yaml:    "name: n\ndescription: d\n",
			wantErr: "one of program or source is required",
		},
		{
			name:    "program and source together",
			yaml:    "name: n\ndescription: d\nprogram: p.dq\nsource: \"!0 !exit\"\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "program file missing",
			yaml:    "name: n\ndescription: d\nprogram: /does/not/exist.dq\n",
			wantErr: "program file not found",
		},
		{
			name:    "negative max_steps",
			yaml:    "name: n\ndescription: d\nsource: \"!0 !exit\"\nmax_steps: -1\n",
			wantErr: "max_steps must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenarioFile(t, tt.yaml)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
