package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/iancoleman/orderedmap"
	"golang.org/x/sync/errgroup"

	"haruki-wwise-audio/utils"
	"haruki-wwise-audio/utils/wwisecodecs/bnk"
)

// ProcessEvents resolves every HIRC event into its media targets through
// the configured resolver. Results replace any earlier run.
func (m *HarukiAudioManager) ProcessEvents(ctx context.Context) error {
	type task struct {
		hirc  *bnk.HIRC
		event bnk.HIRCObject
	}
	var tasks []task
	for _, hirc := range m.Hierarchies() {
		for _, ev := range hirc.Events() {
			tasks = append(tasks, task{hirc, ev})
		}
	}
	if m.opts.Resolver == nil && len(tasks) > 0 {
		logger.Warnf("No event resolver configured, %d events will have no targets", len(tasks))
	}

	results := make([]*bnk.EventInfo, len(tasks))
	workers := m.opts.Concurrency
	if workers <= 0 {
		workers = 16
	}
	var resolved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info := bnk.NewEventInfo(t.event.ID)
			if m.opts.Resolver != nil {
				if err := m.opts.Resolver.Resolve(t.hirc, t.event, info); err != nil {
					logger.Warnf("Unable to resolve event %s: %v", m.session.IDs32().Name(uint64(t.event.ID)), err)
				}
			}
			results[i] = info
			n := int(resolved.Add(1))
			logger.Progressf(n, len(tasks), "Resolved %s with %d target audio files", m.session.IDs32().Name(uint64(t.event.ID)), len(info.IDs()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to process events: %w", err)
	}

	m.mu.Lock()
	m.events = results
	m.mu.Unlock()
	logger.Infof("Done Processing !!")
	return nil
}

func (m *HarukiAudioManager) Events() []*bnk.EventInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*bnk.EventInfo(nil), m.events...)
}

// EventRecords lists, for every event target that is a loaded entry, the
// event name, the entry location and the tags leading to it.
func (m *HarukiAudioManager) EventRecords() []*orderedmap.OrderedMap {
	byID := make(map[uint64][]bnk.Entry)
	for _, e := range m.Entries() {
		byID[e.ID()] = append(byID[e.ID()], e)
	}
	names := m.session.IDs32()
	var records []*orderedmap.OrderedMap
	for _, info := range m.Events() {
		for _, id := range info.IDs() {
			groups := info.GroupsByID(id)
			for _, e := range byID[uint64(id)] {
				tags := orderedmap.New()
				tags.SetEscapeHTML(false)
				for _, typ := range bnk.TagTypes(groups) {
					values := make([]string, 0, len(groups[typ]))
					for _, v := range groups[typ] {
						values = append(values, names.Name(uint64(v)))
					}
					tags.Set(names.Name(uint64(typ)), values)
				}
				rec := orderedmap.New()
				rec.SetEscapeHTML(false)
				rec.Set("Name", names.Name(uint64(info.ID)))
				rec.Set("Location", e.Location(m.opts.Convert))
				rec.Set("Tags", tags)
				records = append(records, rec)
			}
		}
	}
	return records
}

// DumpEvents writes the event records to outputDir/Audio/Infos/tags.json.
func (m *HarukiAudioManager) DumpEvents(outputDir string) error {
	outputPath := filepath.Join(outputDir, "Audio", "Infos", "tags.json")
	records := m.EventRecords()
	if records == nil {
		records = []*orderedmap.OrderedMap{}
	}
	data, err := sonic.ConfigDefault.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	if err := utils.WriteFileAtomic(outputPath, data); err != nil {
		return fmt.Errorf("unable to dump %s: %w", outputPath, err)
	}
	logger.Infof("Dumped %s !!", filepath.Base(outputPath))
	return nil
}
