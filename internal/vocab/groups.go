package vocab

import "strings"

// Group is a named, ordered set of events usable in place of listing each
// event in configuration.
type Group []EventName

// DefaultEvents is captured when no events are configured.
var DefaultEvents = Group{
	Paused,
	Playing,
	Seek,
	PlaybackQualityChange,
	PlaybackRateChange,
	PercentProgress,
}

// AllEvents holds every known event.
var AllEvents = Group(Names)

var groups = map[string]Group{
	"defaultevents": DefaultEvents,
	"allevents":     AllEvents,
}

// GroupNames lists the configurable group names.
var GroupNames = []string{"DefaultEvents", "AllEvents"}

// LookupGroup returns the members of the named group. Matching ignores case.
func LookupGroup(name string) (Group, bool) {
	g, ok := groups[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return append(Group(nil), g...), true
}
