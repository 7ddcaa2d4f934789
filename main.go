package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"haruki-wwise-audio/config"
	"haruki-wwise-audio/manager"
	harukiLogger "haruki-wwise-audio/utils/logger"
	"haruki-wwise-audio/utils/wwisecodecs/bnk"
	"haruki-wwise-audio/utils/wwisecodecs/hashid"
	"haruki-wwise-audio/utils/wwisecodecs/vorbis"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run holds every deferred cleanup so main can exit with its status.
func run(args []string) int {
	flags := pflag.NewFlagSet("haruki-wwise-audio", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", config.DefaultPath, "path to the yaml config file")
	inputs := flags.StringSliceP("input", "i", nil, "package, bank or directory to load (repeatable)")
	output := flags.StringP("output", "o", "", "output directory")
	convert := flags.Bool("convert", false, "convert Vorbis to Ogg and PTADPCM to WAV")
	codebook := flags.String("codebook", "", "packed codebook library")
	layout := flags.String("setup-layout", "", "Vorbis setup codebooks: packed, inline or full")
	filter := flags.String("filter", "", "only dump entries whose location matches this pattern")
	kinds := flags.StringSlice("kinds", nil, "entry kinds to dump: bank, sound, embedded, external")
	events := flags.String("events", "", "event name list")
	externals := flags.String("externals", "", "external path list")
	concurrency := flags.Int("concurrency", 0, "number of concurrent exports")
	logLevel := flags.String("log-level", "", "DEBUG, INFO, WARN or ERROR")
	showVersion := flags.BoolP("version", "v", false, "print the version and exit")
	_ = flags.Parse(args)

	if *showVersion {
		fmt.Println(config.Version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		harukiLogger.NewLogger("ConfigLoader", "DEBUG", os.Stdout).Errorf("Failed to load config: %v", err)
		return 1
	}
	if flags.Changed("output") {
		cfg.Export.OutputDir = *output
	}
	if flags.Changed("convert") {
		cfg.Export.Convert = *convert
	}
	if flags.Changed("codebook") {
		cfg.Codebook.Path = *codebook
	}
	if flags.Changed("setup-layout") {
		cfg.Codebook.Layout = *layout
	}
	if flags.Changed("filter") {
		cfg.Export.Filter = *filter
	}
	if flags.Changed("kinds") {
		cfg.Export.Kinds = *kinds
	}
	if flags.Changed("events") {
		cfg.Names.EventList = *events
	}
	if flags.Changed("externals") {
		cfg.Names.ExternalList = *externals
	}
	if flags.Changed("concurrency") {
		cfg.Export.Concurrency = *concurrency
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		harukiLogger.NewLogger("ConfigLoader", "DEBUG", os.Stdout).Errorf("Invalid options: %v", err)
		return 2
	}
	config.Cfg = cfg

	var loggerWriter io.Writer = os.Stdout
	if config.Cfg.Log.File != "" {
		logFile, err := os.OpenFile(config.Cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			mainLogger := harukiLogger.NewLogger("Main", config.Cfg.Log.Level, os.Stdout)
			mainLogger.Errorf("failed to open main log file: %v", err)
			return 1
		}
		loggerWriter = io.MultiWriter(os.Stdout, logFile)
		defer func(logFile *os.File) {
			harukiLogger.SetDefaults(config.Cfg.Log.Level, os.Stdout)
			_ = logFile.Close()
		}(logFile)
	}
	harukiLogger.SetDefaults(config.Cfg.Log.Level, loggerWriter)
	mainLogger := harukiLogger.NewLogger("Main", config.Cfg.Log.Level, loggerWriter)
	mainLogger.Infof("========================= Haruki Wwise Audio Extractor %s =========================", config.Version)
	mainLogger.Infof("Powered By Haruki Dev Team")

	if len(*inputs) == 0 {
		mainLogger.Errorf("no input given, use --input")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return extract(ctx, mainLogger, *inputs)
}

func extract(ctx context.Context, mainLogger *harukiLogger.Logger, inputs []string) int {
	cfg := config.Cfg

	setupLayout := vorbis.SetupPacked
	if cfg.Codebook.Layout != "" {
		l, err := vorbis.ParseSetupLayout(cfg.Codebook.Layout)
		if err != nil {
			mainLogger.Errorf("%v", err)
			return 2
		}
		setupLayout = l
	}

	var library *vorbis.Library
	if cfg.Export.Convert && setupLayout == vorbis.SetupPacked {
		lib, err := vorbis.LoadLibrary(cfg.Codebook.Path)
		if err != nil {
			mainLogger.Warnf("Unable to load codebook library %s, Vorbis media will not convert: %v", cfg.Codebook.Path, err)
		} else {
			library = lib
			mainLogger.Infof("Loaded %d codebooks from %s", lib.Count(), cfg.Codebook.Path)
		}
	}

	types := make([]bnk.EntryType, 0, len(cfg.Export.Kinds))
	for _, k := range cfg.Export.Kinds {
		t, err := bnk.ParseEntryType(k)
		if err != nil {
			mainLogger.Errorf("invalid export kind: %v", err)
			return 2
		}
		types = append(types, t)
	}

	session := hashid.NewSession()
	m := manager.NewHarukiAudioManager(session, manager.Options{
		Convert:        cfg.Export.Convert,
		VerifyOgg:      cfg.Export.VerifyOgg,
		SkipExisting:   cfg.Export.SkipExisting,
		Concurrency:    cfg.Export.Concurrency,
		Library:        library,
		SetupLayout:    setupLayout,
		PostConvert:    cfg.Export.PostConvert,
		FFmpegPath:     cfg.Tools.FFMPEGPath,
		DeleteOriginal: cfg.Export.RemoveWav,
	})

	loaded := 0
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			mainLogger.Warnf("Unable to load %s: %v", input, err)
			continue
		}
		if info.IsDir() {
			n, err := m.LoadDirectory(input)
			if err != nil {
				mainLogger.Warnf("Unable to load directory %s: %v", input, err)
			}
			loaded += n
		} else if m.LoadFile(input) {
			loaded++
		}
	}
	if loaded == 0 {
		mainLogger.Errorf("no archive could be loaded")
		return 1
	}

	if cfg.Names.Cache != "" {
		n, err := session.Load(cfg.Names.Cache)
		if err != nil {
			mainLogger.Warnf("Unable to load name cache: %v", err)
		} else if n > 0 {
			mainLogger.Infof("Restored %d names from %s", n, cfg.Names.Cache)
		}
	}
	if cfg.Names.EventList != "" {
		names, err := manager.ReadNameList(cfg.Names.EventList)
		if err != nil {
			mainLogger.Warnf("Unable to read event list: %v", err)
		} else {
			m.MatchEvents(names)
		}
	}
	if cfg.Names.ExternalList != "" {
		names, err := manager.ReadNameList(cfg.Names.ExternalList)
		if err != nil {
			mainLogger.Warnf("Unable to read external list: %v", err)
		} else {
			m.MatchExternals(names)
		}
	}
	if cfg.Names.Cache != "" {
		if err := session.Save(cfg.Names.Cache); err != nil {
			mainLogger.Warnf("Unable to save name cache: %v", err)
		}
	}

	entries, err := m.FilterEntries(m.EntriesOf(types...), cfg.Export.Filter)
	if err != nil {
		mainLogger.Errorf("%v", err)
		return 2
	}
	summary, err := m.DumpEntries(ctx, cfg.Export.OutputDir, entries)
	if err != nil {
		mainLogger.Warnf("Export interrupted: %v", err)
		return 130
	}

	if cfg.Export.DumpInfos {
		root := inputs[0]
		if !isDir(root) {
			root = filepath.Dir(root)
		}
		m.DumpInfos(root, cfg.Export.OutputDir)
	}
	if cfg.Export.DumpEvents {
		if err := m.ProcessEvents(ctx); err != nil {
			mainLogger.Warnf("%v", err)
		} else if err := m.DumpEvents(cfg.Export.OutputDir); err != nil {
			mainLogger.Errorf("%v", err)
		}
	}

	if summary.Failed > 0 {
		mainLogger.Warnf("%d entries failed to export", summary.Failed)
		return 1
	}
	return 0
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
