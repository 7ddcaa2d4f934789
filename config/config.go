package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "haruki-wwise-configs.yaml"

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type CodebookConfig struct {
	Path string `yaml:"path"`
	// Layout is "packed", "inline" or "full"; see vorbis.SetupLayout.
	Layout string `yaml:"layout,omitempty"`
}

type ExportConfig struct {
	OutputDir    string   `yaml:"output_dir"`
	Convert      bool     `yaml:"convert"`
	VerifyOgg    bool     `yaml:"verify_ogg,omitempty"`
	Concurrency  int      `yaml:"concurrency,omitempty"`
	Kinds        []string `yaml:"kinds,omitempty"`
	Filter       string   `yaml:"filter,omitempty"`
	SkipExisting bool     `yaml:"skip_existing,omitempty"`
	DumpInfos    bool     `yaml:"dump_infos,omitempty"`
	DumpEvents   bool     `yaml:"dump_events,omitempty"`
	// PostConvert re-encodes WAV output with ffmpeg: "", "mp3" or "flac".
	PostConvert string `yaml:"post_convert,omitempty"`
	RemoveWav   bool   `yaml:"remove_wav,omitempty"`
}

type NamesConfig struct {
	EventList    string `yaml:"event_list,omitempty"`
	ExternalList string `yaml:"external_list,omitempty"`
	Cache        string `yaml:"cache,omitempty"`
}

type ToolConfig struct {
	FFMPEGPath string `yaml:"ffmpeg_path,omitempty"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Codebook CodebookConfig `yaml:"codebook"`
	Export   ExportConfig   `yaml:"export"`
	Names    NamesConfig    `yaml:"names,omitempty"`
	Tools    ToolConfig     `yaml:"tool,omitempty"`
}

var Version = "v1.0.0-dev"
var Cfg Config

// Default returns the configuration used when no file sets a value.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "INFO"},
		Codebook: CodebookConfig{Path: "packed_codebooks_aoTuV_603.bin", Layout: "packed"},
		Export: ExportConfig{
			OutputDir:    "output",
			Concurrency:  16,
			Kinds:        []string{"bank", "sound", "embedded", "external"},
			SkipExisting: true,
		},
		Names: NamesConfig{Cache: "haruki-wwise-names.msgpack"},
		Tools: ToolConfig{FFMPEGPath: "ffmpeg"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Export.Concurrency < 0 {
		return fmt.Errorf("export.concurrency must not be negative, got %d", c.Export.Concurrency)
	}
	switch c.Codebook.Layout {
	case "", "packed", "inline", "full":
	default:
		return fmt.Errorf("codebook.layout must be packed, inline or full, got %q", c.Codebook.Layout)
	}
	switch c.Export.PostConvert {
	case "", "mp3", "flac":
	default:
		return fmt.Errorf("export.post_convert must be mp3 or flac, got %q", c.Export.PostConvert)
	}
	return nil
}
