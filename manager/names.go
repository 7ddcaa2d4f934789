package manager

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"haruki-wwise-audio/utils/wwisecodecs/bnk"
)

// ReadNameList reads one candidate name per line. UTF-8 and UTF-16 files
// with a byte order mark are both accepted; blank lines are dropped.
func ReadNameList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open name list: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(f, decoder))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var names []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read name list %s: %w", path, err)
	}
	return names, nil
}

// MatchEvents offers names to the 32-bit registry and returns how many
// resolved a new ID.
func (m *HarukiAudioManager) MatchEvents(names []string) int {
	ids := m.session.IDs32()
	matched := 0
	for i, name := range names {
		if !ids.TryMatch(name) {
			logger.Debugf("[%d/%d] %s has already been matched or is unknown, skipping...", i+1, len(names), name)
			continue
		}
		matched++
	}
	logger.Infof("Matched %d out of %d IDs !!", matched, ids.Count())
	return matched
}

// MatchExternals offers external source paths to the 64-bit registry.
func (m *HarukiAudioManager) MatchExternals(names []string) int {
	ids := m.session.IDs64()
	matched := 0
	for i, name := range names {
		if !ids.TryMatch(name) {
			logger.Debugf("[%d/%d] %s has already been matched or is unknown, skipping...", i+1, len(names), name)
			continue
		}
		matched++
	}
	logger.Infof("Matched %d out of %d externals !!", matched, len(m.EntriesOf(bnk.TypeExternal)))
	return matched
}

// FilterEntries keeps the entries whose unconverted location matches
// pattern, ignoring case. An empty pattern keeps everything.
func (m *HarukiAudioManager) FilterEntries(entries []bnk.Entry, pattern string) ([]bnk.Entry, error) {
	if pattern == "" {
		return entries, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", pattern, err)
	}
	var out []bnk.Entry
	for _, e := range entries {
		ok, err := re.MatchString(e.Location(false))
		if err != nil {
			return nil, fmt.Errorf("failed to match filter against %s: %w", e.Location(false), err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}
