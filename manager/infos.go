package manager

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/iancoleman/orderedmap"

	"haruki-wwise-audio/utils"
)

// infoPath maps source, relative to inputDir, into outputDir/Audio/Infos
// with a .json extension. Sources outside inputDir keep only their base name.
func infoPath(inputDir, outputDir, source string) string {
	rel, err := filepath.Rel(inputDir, source)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(source)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".json"
	return filepath.Join(outputDir, "Audio", "Infos", rel)
}

func writeInfo(path string, info *orderedmap.OrderedMap) error {
	data, err := sonic.ConfigDefault.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, data)
}

// DumpInfos writes one JSON description per package and per standalone
// bank. Banks stored in a package are described by the package file.
func (m *HarukiAudioManager) DumpInfos(inputDir, outputDir string) int {
	type job struct {
		source string
		info   *orderedmap.OrderedMap
	}
	var jobs []job
	for _, a := range m.Archives() {
		if a.Package != nil {
			jobs = append(jobs, job{a.Source, a.Package.Describe()})
		}
	}
	for _, b := range m.Banks() {
		if b.Package() != nil {
			logger.Debugf("Bank %s is part of a package, skipping...", b.Name())
			continue
		}
		if b.Source() == "" {
			logger.Warnf("Bank has no source, skipping...")
			continue
		}
		jobs = append(jobs, job{b.Source(), b.Describe()})
	}

	dumped := 0
	for _, j := range jobs {
		path := infoPath(inputDir, outputDir, j.source)
		if err := writeInfo(path, j.info); err != nil {
			logger.Errorf("Unable to dump %s: %v", path, err)
			continue
		}
		dumped++
		logger.Progressf(dumped, len(jobs), "Dumped %s", filepath.Base(path))
	}
	logger.Infof("Dumped %d out of %d infos !!", dumped, len(jobs))
	if err := m.DumpUnmatched(outputDir); err != nil {
		logger.Errorf("%v", err)
	}
	return dumped
}

// DumpUnmatched lists the loaded IDs no name list resolved in
// outputDir/Audio/Infos/unmatched.json.
func (m *HarukiAudioManager) DumpUnmatched(outputDir string) error {
	info := orderedmap.New()
	info.Set("IDs32", m.session.IDs32().Unmatched())
	info.Set("IDs64", m.session.IDs64().Unmatched())
	path := filepath.Join(outputDir, "Audio", "Infos", "unmatched.json")
	if err := writeInfo(path, info); err != nil {
		return fmt.Errorf("failed to dump unmatched IDs: %w", err)
	}
	return nil
}
