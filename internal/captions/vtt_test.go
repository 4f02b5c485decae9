package captions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:00.000 --> 00:00:02.500 align:start position:0%
Never gonna give you up

00:00:02.500 --> 00:00:05.000
Never gonna let <c>you</c> down

01:00:01.000 --> 01:00:03.000
An hour in
`

func writeTrack(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	writeTrack(t, dir, "abc.en.vtt", sampleVTT)

	segments, err := ParseFile(filepath.Join(dir, "abc.en.vtt"))
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, "Never gonna give you up", segments[0].Text)
	assert.InDelta(t, 0.0, segments[0].StartSeconds, 0.001)
	assert.InDelta(t, 2.5, segments[0].DurationSeconds, 0.001)

	assert.Equal(t, "Never gonna let you down", segments[1].Text)
	assert.InDelta(t, 2.5, segments[1].StartSeconds, 0.001)

	assert.Equal(t, "An hour in", segments[2].Text)
	assert.InDelta(t, 3601.0, segments[2].StartSeconds, 0.001)
	assert.InDelta(t, 2.0, segments[2].DurationSeconds, 0.001)
}

func TestParseFile_RollingDuplicatesCollapsed(t *testing.T) {
	const rolling = `WEBVTT

00:00:00.000 --> 00:00:02.000
same line

00:00:02.000 --> 00:00:04.000
same line

00:00:04.000 --> 00:00:06.000
new line
`
	dir := t.TempDir()
	writeTrack(t, dir, "abc.en.vtt", rolling)

	segments, err := ParseFile(filepath.Join(dir, "abc.en.vtt"))
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "same line", segments[0].Text)
	assert.Equal(t, "new line", segments[1].Text)
}

func TestPickTrack_LanguagePriority(t *testing.T) {
	dir := t.TempDir()
	writeTrack(t, dir, "abc.de.vtt", sampleVTT)
	writeTrack(t, dir, "abc.en-GB.vtt", sampleVTT)
	writeTrack(t, dir, "abc.en.vtt", sampleVTT)

	track, err := PickTrack(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.en.vtt"), track)
}

func TestPickTrack_RegionalVariantFallback(t *testing.T) {
	dir := t.TempDir()
	writeTrack(t, dir, "abc.de.vtt", sampleVTT)
	writeTrack(t, dir, "abc.en-US.vtt", sampleVTT)

	track, err := PickTrack(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.en-US.vtt"), track)
}

func TestPickTrack_AnyTrackAsLastResort(t *testing.T) {
	dir := t.TempDir()
	writeTrack(t, dir, "abc.de.vtt", sampleVTT)

	track, err := PickTrack(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.de.vtt"), track)
}

func TestPickTrack_EmptyDirMeansNoCaptions(t *testing.T) {
	track, err := PickTrack(t.TempDir(), "en")
	require.NoError(t, err)
	assert.Empty(t, track)
}

func TestPickTrack_MissingDirMeansNoCaptions(t *testing.T) {
	track, err := PickTrack(filepath.Join(t.TempDir(), "nope"), "en")
	require.NoError(t, err)
	assert.Empty(t, track)
}
