package exporter

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ConvertWav re-encodes a WAV file with ffmpeg. format is "mp3" or "flac".
func ConvertWav(wavFile string, outFile string, format string, deleteOriginal bool, ffmpegPath string) error {
	var args []string
	switch strings.ToLower(format) {
	case "mp3":
		args = []string{"-i", wavFile, "-b:a", "320k", "-y", outFile}
	case "flac":
		args = []string{"-i", wavFile, "-compression_level", "12", "-y", outFile}
	default:
		return fmt.Errorf("unsupported post conversion format %q", format)
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cmd := exec.Command(ffmpegPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to convert WAV to %s: %w", strings.ToUpper(format), err)
	}
	if deleteOriginal {
		if _, err := os.Stat(wavFile); err == nil {
			if err := os.Remove(wavFile); err != nil {
				return fmt.Errorf("failed to delete original WAV file: %w", err)
			}
		}
	}
	return nil
}
