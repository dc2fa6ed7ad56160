package prefs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := LoadFrom(dir)
	assert.Equal(t, "", p.String(KeyOperator))
	assert.Equal(t, 1280.0, p.Float(KeyWindowWidth, 1280))
	assert.True(t, p.Bool(KeyShowOverlay, true))

	p.SetString(KeyOperator, "jo")
	p.SetFloat(KeyWindowWidth, 1024)
	p.SetBool(KeyShowOverlay, false)
	require.NoError(t, p.SaveIfChanged())

	again := LoadFrom(dir)
	assert.Equal(t, "jo", again.String(KeyOperator))
	assert.Equal(t, 1024.0, again.Float(KeyWindowWidth, 1280))
	assert.False(t, again.Bool(KeyShowOverlay, true))
}

func TestSaveIfChangedSkipsCleanPrefs(t *testing.T) {
	dir := t.TempDir()
	p := LoadFrom(dir)
	require.NoError(t, p.SaveIfChanged())
	_, err := os.Stat(p.Path())
	assert.True(t, os.IsNotExist(err))

	p.SetString(KeyLastSearch, "334456")
	require.NoError(t, p.SaveIfChanged())
	_, err = os.Stat(p.Path())
	assert.NoError(t, err)
}

func TestCorruptFile(t *testing.T) {
	dir := t.TempDir()
	p := LoadFrom(dir)
	require.NoError(t, os.WriteFile(p.Path(), []byte("{not json"), 0o644))

	again := LoadFrom(dir)
	assert.Equal(t, "", again.String(KeyOperator))
	again.SetString(KeyOperator, "sam")
	assert.Equal(t, "sam", again.String(KeyOperator))
}
