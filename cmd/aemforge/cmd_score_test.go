package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repairedBundle(t *testing.T) *models.ArtifactBundle {
	t.Helper()
	id := repair.NewIdentity("hero-banner", "wknd", "com.adobe.wknd", "")
	b, _ := repair.Apply(models.NewArtifactBundle(), id)
	return b
}

func writeBundleFile(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestScoreCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeBundleFile(t, dir, "hero.json", repairedBundle(t))

	stdout, _, err := runCLI(t, dir, "score", path, "--format", "json")
	require.NoError(t, err)

	var report models.ValidationReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, models.ValidationPass, report.Status)
	assert.GreaterOrEqual(t, report.Score, models.PassThreshold)
}

func TestScoreCommand_TextAndJUnit(t *testing.T) {
	dir := t.TempDir()
	path := writeBundleFile(t, dir, "hero.json", repairedBundle(t))
	junit := filepath.Join(dir, "junit.xml")

	stdout, _, err := runCLI(t, dir, "score", path, "--junit", junit)
	require.NoError(t, err)
	assert.Contains(t, stdout, "hero")
	assert.Contains(t, stdout, "completeness")
	assert.FileExists(t, junit)
}

func TestScoreCommand_SecondaryOpinion(t *testing.T) {
	dir := t.TempDir()
	path := writeBundleFile(t, dir, "hero.json", repairedBundle(t))

	stdout, _, err := runCLI(t, dir, "score", path, "--secondary", "--engine", "scripted", "--format", "json")
	require.NoError(t, err)

	var report models.ValidationReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, models.ValidationPass, report.Status)
}

func TestScoreCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runCLI(t, dir, "score")
	assert.Error(t, err)

	_, _, err = runCLI(t, dir, "score", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading bundle")

	empty := writeBundleFile(t, dir, "empty.json", map[string]any{})
	_, _, err = runCLI(t, dir, "score", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no artifacts found")

	path := writeBundleFile(t, dir, "hero.json", repairedBundle(t))
	_, _, err = runCLI(t, dir, "score", path, "--format", "markdown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestReadBundle(t *testing.T) {
	bundle := repairedBundle(t)
	data, err := json.Marshal(map[string]any{"request_id": "abc", "files": bundle})
	require.NoError(t, err)

	got, err := readBundle(strings.NewReader(string(data)), "-")
	require.NoError(t, err)
	assert.Equal(t, bundle.Artifacts, got.Artifacts)

	data, err = json.Marshal(bundle)
	require.NoError(t, err)
	got, err = readBundle(strings.NewReader(string(data)), "-")
	require.NoError(t, err)
	assert.Equal(t, bundle.Artifacts[models.ArtifactModel], got.Artifacts[models.ArtifactModel])

	_, err = readBundle(strings.NewReader("{not json"), "-")
	assert.Error(t, err)
}

func TestBundleName(t *testing.T) {
	assert.Equal(t, "stdin", bundleName("-"))
	assert.Equal(t, "hero", bundleName("/tmp/bundles/hero.json"))
}

func TestResolveTCPAddr(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	tests := []struct {
		addr   string
		remote bool
		want   string
	}{
		{":9000", false, "127.0.0.1:9000"},
		{"9000", false, "127.0.0.1:9000"},
		{"0.0.0.0:9000", false, "127.0.0.1:9000"},
		{"[::]:9000", false, "127.0.0.1:9000"},
		{"localhost:9000", false, "localhost:9000"},
		{"0.0.0.0:9000", true, "0.0.0.0:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveTCPAddr(tt.addr, tt.remote, logger))
		})
	}
}

func TestEngineName(t *testing.T) {
	assert.Equal(t, "copilot", engineName("copilot", ""))
	assert.Equal(t, "scripted", engineName("copilot", "scripted"))
}
