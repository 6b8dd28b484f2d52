package filter

import (
	regexp "github.com/grafana/regexp"
	"github.com/puzpuzpuz/xsync/v3"

	"streamview/work/logger"
	"streamview/work/types"
)

// Set holds the compiled include/exclude patterns for one profile. A nil
// pattern means "no constraint": missing includes admit everything, missing
// excludes reject nothing. Invalid patterns are logged once at compile time
// and then behave as if absent, so a bad regex can never empty a catalog.
type Set struct {
	liveInclude   *regexp.Regexp
	liveExclude   *regexp.Regexp
	vodInclude    *regexp.Regexp
	vodExclude    *regexp.Regexp
	seriesInclude *regexp.Regexp
	seriesExclude *regexp.Regexp
}

// compiled caches filter sets across requests keyed by the concatenated
// pattern strings. Profiles rarely change, so hit rates are high.
var compiled = xsync.NewMapOf[string, *Set]()

// ForProfile returns the compiled filter set for a profile, compiling and
// caching on first use. A nil profile yields an empty set that admits
// everything.
func ForProfile(p *types.Profile, log *logger.Logger) *Set {
	if p == nil {
		return &Set{}
	}

	key := p.LiveIncludeRegex + "\x00" + p.LiveExcludeRegex + "\x00" +
		p.VODIncludeRegex + "\x00" + p.VODExcludeRegex + "\x00" +
		p.SeriesIncludeRegex + "\x00" + p.SeriesExcludeRegex

	if set, ok := compiled.Load(key); ok {
		return set
	}

	set := &Set{
		liveInclude:   compile(p.LiveIncludeRegex, "liveIncludeRegex", log),
		liveExclude:   compile(p.LiveExcludeRegex, "liveExcludeRegex", log),
		vodInclude:    compile(p.VODIncludeRegex, "vodIncludeRegex", log),
		vodExclude:    compile(p.VODExcludeRegex, "vodExcludeRegex", log),
		seriesInclude: compile(p.SeriesIncludeRegex, "seriesIncludeRegex", log),
		seriesExclude: compile(p.SeriesExcludeRegex, "seriesExcludeRegex", log),
	}
	compiled.Store(key, set)
	return set
}

// compile parses one pattern, returning nil for empty or invalid input.
func compile(pattern, name string, log *logger.Logger) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		if log != nil {
			log.Warn("{filter - compile} invalid %s: %v", name, err)
		}
		return nil
	}
	return re
}

// Allow reports whether a named entry of the given content kind passes the
// profile's filters.
func (s *Set) Allow(kind types.StreamKind, name string) bool {
	var include, exclude *regexp.Regexp
	switch kind {
	case types.StreamLive:
		include, exclude = s.liveInclude, s.liveExclude
	case types.StreamMovie:
		include, exclude = s.vodInclude, s.vodExclude
	case types.StreamSeries:
		include, exclude = s.seriesInclude, s.seriesExclude
	}

	if include != nil && !include.MatchString(name) {
		return false
	}
	if exclude != nil && exclude.MatchString(name) {
		return false
	}
	return true
}

// FilterLive returns the live streams passing the set.
func (s *Set) FilterLive(streams []types.XCLiveStream) []types.XCLiveStream {
	out := streams[:0:0]
	for _, st := range streams {
		if s.Allow(types.StreamLive, st.Name) {
			out = append(out, st)
		}
	}
	return out
}

// FilterVOD returns the VOD streams passing the set.
func (s *Set) FilterVOD(streams []types.XCVODStream) []types.XCVODStream {
	out := streams[:0:0]
	for _, st := range streams {
		if s.Allow(types.StreamMovie, st.Name) {
			out = append(out, st)
		}
	}
	return out
}

// FilterSeries returns the series passing the set.
func (s *Set) FilterSeries(series []types.XCSeries) []types.XCSeries {
	out := series[:0:0]
	for _, sr := range series {
		if s.Allow(types.StreamSeries, sr.Name) {
			out = append(out, sr)
		}
	}
	return out
}
