package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"haruki-wwise-audio/utils"
	"haruki-wwise-audio/utils/exporter"
	harukiLogger "haruki-wwise-audio/utils/logger"
	"haruki-wwise-audio/utils/wwisecodecs/bnk"
	"haruki-wwise-audio/utils/wwisecodecs/hashid"
	"haruki-wwise-audio/utils/wwisecodecs/vorbis"
	"haruki-wwise-audio/utils/wwisecodecs/wem"
)

var logger = harukiLogger.NewLogger("AudioManager", "INFO", nil)

type Options struct {
	Convert        bool
	VerifyOgg      bool
	SkipExisting   bool
	Concurrency    int
	Library        *vorbis.Library
	SetupLayout    vorbis.SetupLayout
	Resolver       bnk.Resolver
	PostConvert    string
	FFmpegPath     string
	DeleteOriginal bool
}

// HarukiAudioManager owns the archives of one load session together with
// the identifier registries their IDs resolve through.
type HarukiAudioManager struct {
	mu        sync.RWMutex
	session   *hashid.Session
	opts      Options
	converter *wem.Converter
	archives  []*bnk.Archive
	entries   []bnk.Entry
	events    []*bnk.EventInfo
}

func NewHarukiAudioManager(session *hashid.Session, opts Options) *HarukiAudioManager {
	if session == nil {
		session = hashid.NewSession()
	}
	return &HarukiAudioManager{
		session:   session,
		opts:      opts,
		converter: wem.NewConverter(opts.Library,
			wem.WithVerifyOgg(opts.VerifyOgg),
			wem.WithSetupLayout(opts.SetupLayout),
		),
	}
}

func (m *HarukiAudioManager) Session() *hashid.Session {
	return m.session
}

// LoadFile loads one package or bank. Failures are logged and reported as false.
func (m *HarukiAudioManager) LoadFile(path string) bool {
	if !utils.FileExists(path) {
		logger.Warnf("Unable to load file %s !!", path)
		return false
	}
	a, err := bnk.LoadFile(path, m.session)
	if err != nil {
		logger.Errorf("Error while loading file %s: %v", path, err)
		return false
	}
	m.mu.Lock()
	m.archives = append(m.archives, a)
	m.entries = append(m.entries, a.Entries...)
	m.mu.Unlock()
	return true
}

func (m *HarukiAudioManager) LoadFiles(paths []string) int {
	logger.Infof("Loading %d files...", len(paths))
	loaded := 0
	for _, path := range paths {
		if m.LoadFile(path) {
			loaded++
			logger.Progressf(loaded, len(paths), "Loaded %s", filepath.Base(path))
		}
	}
	return loaded
}

// LoadDirectory loads every file found below dir.
func (m *HarukiAudioManager) LoadDirectory(dir string) (int, error) {
	files, err := utils.FindFilesByExtension(dir, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return m.LoadFiles(files), nil
}

// Clear drops every archive, cached media, event and registered ID.
func (m *HarukiAudioManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if a, ok := e.(bnk.AudioEntry); ok {
			a.Release()
		}
	}
	m.archives = nil
	m.entries = nil
	m.events = nil
	m.session.Clear()
}

func (m *HarukiAudioManager) Archives() []*bnk.Archive {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*bnk.Archive(nil), m.archives...)
}

func (m *HarukiAudioManager) Entries() []bnk.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]bnk.Entry(nil), m.entries...)
}

// EntriesOf returns the entries whose type is one of types.
func (m *HarukiAudioManager) EntriesOf(types ...bnk.EntryType) []bnk.Entry {
	want := make(map[bnk.EntryType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []bnk.Entry
	for _, e := range m.Entries() {
		if want[e.Type()] {
			out = append(out, e)
		}
	}
	return out
}

func (m *HarukiAudioManager) Banks() []*bnk.Bank {
	var out []*bnk.Bank
	for _, e := range m.Entries() {
		if b, ok := e.(*bnk.Bank); ok {
			out = append(out, b)
		}
	}
	return out
}

// Hierarchies returns the HIRC chunk of every loaded bank that has one.
func (m *HarukiAudioManager) Hierarchies() []*bnk.HIRC {
	var out []*bnk.HIRC
	for _, b := range m.Banks() {
		if hirc, ok := b.HIRC(); ok {
			out = append(out, hirc)
		}
	}
	return out
}

func (m *HarukiAudioManager) exportOptions() exporter.Options {
	return exporter.Options{
		Convert:        m.opts.Convert,
		SkipExisting:   m.opts.SkipExisting,
		Concurrency:    m.opts.Concurrency,
		Converter:      m.converter,
		PostConvert:    m.opts.PostConvert,
		FFmpegPath:     m.opts.FFmpegPath,
		DeleteOriginal: m.opts.DeleteOriginal,
	}
}

// DumpEntries writes entries to outputDir/Bank or outputDir/Audio.
func (m *HarukiAudioManager) DumpEntries(ctx context.Context, outputDir string, entries []bnk.Entry) (exporter.Summary, error) {
	return exporter.ExportEntries(ctx, outputDir, entries, m.exportOptions())
}

// DumpKinds writes every loaded entry of the given types.
func (m *HarukiAudioManager) DumpKinds(ctx context.Context, outputDir string, types ...bnk.EntryType) (exporter.Summary, error) {
	return m.DumpEntries(ctx, outputDir, m.EntriesOf(types...))
}
