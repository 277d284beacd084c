package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
crawler:
  trigger_url: https://www.example.com/
supported_domains: [example.com, other.com]
domains:
  - name: example.com
    profile: amazon.com
`)
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"check", "--config", path}, &stdout, &stderr))

	out := stdout.String()
	assert.Contains(t, out, "crawled domain: example.com")
	assert.Contains(t, out, "robots.txt:     https://www.example.com/robots.txt")
	assert.Contains(t, out, "domain other.com: ok")
}

func TestCheckCommandRejectsUnsupportedDomain(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
crawler:
  trigger_url: https://www.example.com/
supported_domains: [other.com]
`)
	var stdout, stderr bytes.Buffer
	err := run([]string{"check", "--config", path}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "domain not supported")
}

func TestCheckCommandMissingConfig(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"check", "--config", filepath.Join(t.TempDir(), "nope.yaml")}, &stdout, &stderr)
	require.ErrorContains(t, err, "load config")
}
