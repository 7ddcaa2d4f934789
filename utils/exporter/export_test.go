package exporter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haruki-wwise-audio/utils/wwisecodecs/bnk"
	"haruki-wwise-audio/utils/wwisecodecs/bnk/bnktest"
	"haruki-wwise-audio/utils/wwisecodecs/hashid"
	"haruki-wwise-audio/utils/wwisecodecs/riff"
	"haruki-wwise-audio/utils/wwisecodecs/riff/rifftest"
)

func loadBank(t *testing.T) (*bnk.Archive, []byte) {
	t.Helper()
	media := rifftest.Build(
		rifftest.FMT(riff.FormatPCM, 1, 48000, 96000, 2, 16, nil),
		rifftest.Data([]byte{1, 2, 3, 4}),
	)
	file := bnktest.Bank(
		bnktest.BKHD(0x88, hashid.Hash32("ui"), 0, 16),
		bnktest.STID(bnktest.Name{ID: hashid.Hash32("ui"), Name: "ui"}),
		bnktest.DIDX(
			bnktest.Media{ID: 1, Offset: 0, Size: int32(len(media))},
			bnktest.Media{ID: 2, Offset: 0, Size: 1 << 20},
		),
		bnktest.DATA(media),
	)
	path := filepath.Join(t.TempDir(), "ui.bnk")
	require.NoError(t, os.WriteFile(path, file, 0o644))
	a, err := bnk.LoadFile(path, hashid.NewSession())
	require.NoError(t, err)
	return a, media
}

func TestExportEntries(t *testing.T) {
	a, media := loadBank(t)
	out := t.TempDir()
	opts := Options{SkipExisting: true, Concurrency: 2}

	summary, err := ExportEntries(context.Background(), out, a.Entries, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Dumped)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 3)
	assert.Error(t, summary.Results[2].Err)
	assert.NoFileExists(t, summary.Results[2].Path)

	got, err := os.ReadFile(filepath.Join(out, "Audio", "None", "ui", "1.wem"))
	require.NoError(t, err)
	assert.Equal(t, media, got)
	assert.FileExists(t, filepath.Join(out, "Bank", "None", "ui.bnk"))

	again, err := ExportEntries(context.Background(), out, a.Entries, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Skipped)
	assert.Equal(t, 0, again.Dumped)
	reread, err := os.ReadFile(filepath.Join(out, "Audio", "None", "ui", "1.wem"))
	require.NoError(t, err)
	assert.Equal(t, got, reread)
}

func TestExportConverted(t *testing.T) {
	a, media := loadBank(t)
	out := t.TempDir()
	summary, err := ExportEntries(context.Background(), out, a.Entries[1:2], Options{Convert: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Dumped)

	got, err := os.ReadFile(filepath.Join(out, "Audio", "None", "ui", "1.wav"))
	require.NoError(t, err)
	assert.Equal(t, media, got)
	assert.Equal(t, filepath.Join(out, "Audio", "None", "ui", "1.wav"), OutputPath(out, a.Entries[1], true))
}

func TestExportCancelled(t *testing.T) {
	a, _ := loadBank(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := ExportEntries(ctx, t.TempDir(), a.Entries, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, summary.Failed)
}

func TestConvertWavRejectsFormat(t *testing.T) {
	err := ConvertWav("in.wav", "out.ogg", "ogg", false, "")
	assert.Error(t, err)
}

func TestExportKeepsWavWhenPostConvertFails(t *testing.T) {
	a, media := loadBank(t)
	out := t.TempDir()
	opts := Options{
		Convert:        true,
		PostConvert:    "mp3",
		FFmpegPath:     filepath.Join(t.TempDir(), "missing-ffmpeg"),
		DeleteOriginal: true,
	}
	summary, err := ExportEntries(context.Background(), out, a.Entries[1:2], opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Dumped)
	assert.Zero(t, summary.Failed)

	got, err := os.ReadFile(filepath.Join(out, "Audio", "None", "ui", "1.wav"))
	require.NoError(t, err)
	assert.Equal(t, media, got)
	assert.NoFileExists(t, filepath.Join(out, "Audio", "None", "ui", "1.mp3"))
}

// fakeFFmpeg copies its input to its output, standing in for an encoder.
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script encoder")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncp \"$2\" \"$6\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestExportSkipsPostConverted(t *testing.T) {
	a, media := loadBank(t)
	out := t.TempDir()
	opts := Options{
		Convert:        true,
		SkipExisting:   true,
		PostConvert:    "mp3",
		FFmpegPath:     fakeFFmpeg(t),
		DeleteOriginal: true,
	}
	summary, err := ExportEntries(context.Background(), out, a.Entries[1:2], opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Dumped)
	wav := filepath.Join(out, "Audio", "None", "ui", "1.wav")
	mp3 := filepath.Join(out, "Audio", "None", "ui", "1.mp3")
	assert.NoFileExists(t, wav)
	got, err := os.ReadFile(mp3)
	require.NoError(t, err)
	assert.Equal(t, media, got)

	again, err := ExportEntries(context.Background(), out, a.Entries[1:2], opts)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Skipped)
	assert.Zero(t, again.Dumped)
	assert.NoFileExists(t, wav)
}

type panickyEntry struct {
	bnk.Entry
}

func (panickyEntry) WriteTo(io.Writer) (int64, error) {
	panic("broken entry")
}

func TestExportRecoversPanic(t *testing.T) {
	a, _ := loadBank(t)
	entries := []bnk.Entry{panickyEntry{a.Entries[0]}, a.Entries[1]}
	summary, err := ExportEntries(context.Background(), t.TempDir(), entries, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Dumped)
	require.Error(t, summary.Results[0].Err)
	assert.Contains(t, summary.Results[0].Err.Error(), "broken entry")
	assert.Equal(t, a.Entries[0].Location(false), summary.Results[0].Location)
}
