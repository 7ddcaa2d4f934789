package exporter

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"haruki-wwise-audio/utils"
	"haruki-wwise-audio/utils/wwisecodecs/bnk"
	"haruki-wwise-audio/utils/wwisecodecs/wem"
)

// Options controls how entries are written.
type Options struct {
	Convert      bool
	SkipExisting bool
	Concurrency  int
	Converter    *wem.Converter
	// PostConvert re-encodes WAV output with ffmpeg ("mp3" or "flac").
	PostConvert    string
	FFmpegPath     string
	DeleteOriginal bool
}

// OutputPath is where entry lands under outputDir: banks go to Bank/, every
// audio entry to Audio/.
func OutputPath(outputDir string, entry bnk.Entry, convert bool) string {
	return outputPath(outputDir, entry.Type(), entry.Location(convert))
}

func outputPath(outputDir string, typ bnk.EntryType, location string) string {
	root := "Audio"
	if typ == bnk.TypeBank {
		root = "Bank"
	}
	return filepath.Join(outputDir, root, filepath.FromSlash(location))
}

func ExportEntry(entry bnk.Entry, dest string, opts Options) error {
	var buf bytes.Buffer
	audio, isAudio := entry.(bnk.AudioEntry)
	if opts.Convert && isAudio {
		m, err := audio.Media()
		if err != nil {
			return fmt.Errorf("failed to parse media: %w", err)
		}
		defer audio.Release()
		converter := opts.Converter
		if converter == nil {
			converter = wem.NewConverter(nil)
		}
		if err := converter.Convert(m, &buf); err != nil {
			return fmt.Errorf("failed to convert %s media: %w", m.Codec, err)
		}
	} else if _, err := entry.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to read entry: %w", err)
	}

	if err := utils.WriteFileAtomic(dest, buf.Bytes()); err != nil {
		return err
	}

	if target, ok := postConvertPath(dest, opts.PostConvert); ok {
		if err := ConvertWav(dest, target, opts.PostConvert, opts.DeleteOriginal, opts.FFmpegPath); err != nil {
			logger.Warnf("Unable to post convert %s, keeping WAV: %v", dest, err)
		}
	}
	return nil
}

// postConvertPath is the ffmpeg output for a WAV destination, if format asks for one.
func postConvertPath(dest, format string) (string, bool) {
	if format == "" || !strings.EqualFold(filepath.Ext(dest), ".wav") {
		return "", false
	}
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + "." + strings.ToLower(format), true
}
