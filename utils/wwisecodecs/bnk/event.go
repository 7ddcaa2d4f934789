package bnk

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// EventTag is a (state or switch group, value) pair active on a path to a target.
type EventTag struct {
	Type  uint32
	Value uint32
}

func compareTags(a, b EventTag) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	return cmp.Compare(a.Value, b.Value)
}

// normalizeTags returns tags as a sorted duplicate-free set.
func normalizeTags(tags []EventTag) []EventTag {
	out := slices.Clone(tags)
	slices.SortFunc(out, compareTags)
	return slices.Compact(out)
}

func tagKey(tags []EventTag) string {
	var sb strings.Builder
	for i, t := range tags {
		if i > 0 {
			sb.WriteByte(',')
		}
		_, _ = fmt.Fprintf(&sb, "%d:%d", t.Type, t.Value)
	}
	return sb.String()
}

// EventGroup is the set of targets reachable under one tag set.
type EventGroup struct {
	Tags []EventTag
	IDs  []uint32
}

// TagStack holds the tags active during hierarchy traversal.
type TagStack struct {
	tags []EventTag
}

func (s *TagStack) Push(tag EventTag) {
	s.tags = append(s.tags, tag)
}

func (s *TagStack) Pop() (EventTag, bool) {
	if len(s.tags) == 0 {
		return EventTag{}, false
	}
	t := s.tags[len(s.tags)-1]
	s.tags = s.tags[:len(s.tags)-1]
	return t, true
}

func (s *TagStack) Len() int { return len(s.tags) }

// Tags returns a copy of the active tags, outermost first.
func (s *TagStack) Tags() []EventTag { return slices.Clone(s.tags) }

type eventGroup struct {
	tags []EventTag
	ids  map[uint32]struct{}
}

// EventInfo collects the media targets of one event grouped by tag set.
// An EventInfo is filled by one goroutine.
type EventInfo struct {
	ID       uint32
	TagStack TagStack
	groups   map[string]*eventGroup
	order    []string
}

func NewEventInfo(id uint32) *EventInfo {
	return &EventInfo{ID: id, groups: make(map[string]*eventGroup)}
}

// AddTarget files id under the tag set currently on the stack.
func (e *EventInfo) AddTarget(id uint32) {
	tags := normalizeTags(e.TagStack.tags)
	key := tagKey(tags)
	g, ok := e.groups[key]
	if !ok {
		g = &eventGroup{tags: tags, ids: make(map[uint32]struct{})}
		e.groups[key] = g
		e.order = append(e.order, key)
	}
	g.ids[id] = struct{}{}
}

func sortedIDs(set map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Groups returns every tag set with its targets, in insertion order.
func (e *EventInfo) Groups() []EventGroup {
	out := make([]EventGroup, 0, len(e.order))
	for _, key := range e.order {
		g := e.groups[key]
		out = append(out, EventGroup{Tags: slices.Clone(g.tags), IDs: sortedIDs(g.ids)})
	}
	return out
}

// IDs returns every target ID across all groups.
func (e *EventInfo) IDs() []uint32 {
	set := make(map[uint32]struct{})
	for _, g := range e.groups {
		for id := range g.ids {
			set[id] = struct{}{}
		}
	}
	return sortedIDs(set)
}

// Tags returns every tag used by any group.
func (e *EventInfo) Tags() []EventTag {
	var all []EventTag
	for _, g := range e.groups {
		all = append(all, g.tags...)
	}
	return normalizeTags(all)
}

// GroupsByID returns, per tag type, the values of every group containing id.
func (e *EventInfo) GroupsByID(id uint32) map[uint32][]uint32 {
	values := make(map[uint32]map[uint32]struct{})
	for _, g := range e.groups {
		if _, ok := g.ids[id]; !ok {
			continue
		}
		for _, t := range g.tags {
			if values[t.Type] == nil {
				values[t.Type] = make(map[uint32]struct{})
			}
			values[t.Type][t.Value] = struct{}{}
		}
	}
	out := make(map[uint32][]uint32, len(values))
	for typ, set := range values {
		out[typ] = sortedIDs(set)
	}
	return out
}

// IDsByTags returns the targets of the group whose tag set equals tags.
func (e *EventInfo) IDsByTags(tags []EventTag) []uint32 {
	g, ok := e.groups[tagKey(normalizeTags(tags))]
	if !ok {
		return nil
	}
	return sortedIDs(g.ids)
}

// Resolver walks the hierarchy below an event and records its targets in info.
type Resolver interface {
	Resolve(hirc *HIRC, event HIRCObject, info *EventInfo) error
}

type ResolverFunc func(hirc *HIRC, event HIRCObject, info *EventInfo) error

func (f ResolverFunc) Resolve(hirc *HIRC, event HIRCObject, info *EventInfo) error {
	return f(hirc, event, info)
}

// TagTypes returns the tag types of a GroupsByID result in ascending order.
func TagTypes(groups map[uint32][]uint32) []uint32 {
	out := make([]uint32, 0, len(groups))
	for t := range groups {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
