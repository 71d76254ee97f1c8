// Package params extracts query parameters from a player source URL.
//
// Keys and values are lowercased. Values are not percent-decoded.
package params

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var arraySuffix = regexp.MustCompile(`\[(\d+)?\]$`)

// MaxIndex is the largest accepted explicit list index. Entries with a
// larger index are dropped.
const MaxIndex = 1023

// ErrIndexOutOfRange reports a dropped list entry.
var ErrIndexOutOfRange = errors.New("list index out of range")

// Value is one parameter value. Flag is set for keys that carried no '='.
type Value struct {
	Str  string
	Flag bool
}

func (v Value) String() string {
	if v.Flag {
		return "true"
	}
	return v.Str
}

// Param is a scalar or array-valued parameter. List is non-nil for array
// values; nil entries are indices that were never assigned.
type Param struct {
	Value
	List []*Value
}

// IsList reports whether p holds a sequence.
func (p Param) IsList() bool {
	return p.List != nil
}

// Strings returns the values of p in order, skipping gaps.
func (p Param) Strings() []string {
	if !p.IsList() {
		return []string{p.String()}
	}
	out := make([]string, 0, len(p.List))
	for _, v := range p.List {
		if v != nil {
			out = append(out, v.String())
		}
	}
	return out
}

// Params maps lowercase parameter names to their values.
type Params map[string]Param

// Extract parses the query string of rawURL. Anything after '#' is ignored.
func Extract(rawURL string) Params {
	ps, _ := Parse(rawURL)
	return ps
}

// Parse is Extract that also reports the entries it dropped. The returned
// Params are complete apart from those entries.
func Parse(rawURL string) (Params, error) {
	out := Params{}

	_, query, found := strings.Cut(rawURL, "?")
	if !found {
		return out, nil
	}
	query, _, _ = strings.Cut(query, "#")
	if query == "" {
		return out, nil
	}

	var errs []error

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		name, raw, hasValue := strings.Cut(pair, "=")
		name = strings.ToLower(name)
		val := Value{Flag: true}
		if hasValue {
			val = Value{Str: strings.ToLower(raw)}
		}

		m := arraySuffix.FindStringSubmatchIndex(name)
		if m == nil {
			out.add(name, val)
			continue
		}

		key := name[:m[0]]
		p := out.list(key)
		if m[2] >= 0 {
			idx, err := strconv.Atoi(name[m[2]:m[3]])
			if err != nil || idx > MaxIndex {
				errs = append(errs, fmt.Errorf("%w: %s", ErrIndexOutOfRange, name))
				continue
			}
			for len(p.List) <= idx {
				p.List = append(p.List, nil)
			}
			p.List[idx] = &val
		} else {
			p.List = append(p.List, &val)
		}
		out[key] = p
	}
	return out, errors.Join(errs...)
}

// add stores a bare key, coercing an existing scalar into a list on the
// second occurrence.
func (ps Params) add(key string, val Value) {
	p, ok := ps[key]
	switch {
	case !ok:
		ps[key] = Param{Value: val}
	case p.IsList():
		p.List = append(p.List, &val)
		ps[key] = p
	default:
		first := p.Value
		ps[key] = Param{List: []*Value{&first, &val}}
	}
}

// list returns the array form of key, converting an existing scalar.
func (ps Params) list(key string) Param {
	p, ok := ps[key]
	if !ok {
		return Param{List: []*Value{}}
	}
	if p.IsList() {
		return p
	}
	first := p.Value
	return Param{List: []*Value{&first}}
}

// Has reports whether key was present.
func (ps Params) Has(key string) bool {
	_, ok := ps[key]
	return ok
}

// Get returns the scalar value of key. Lists yield their first present entry.
func (ps Params) Get(key string) string {
	p, ok := ps[key]
	if !ok {
		return ""
	}
	if s := p.Strings(); len(s) > 0 {
		return s[0]
	}
	return ""
}

// Enabled reports whether key is present and switched on ("1" or a bare key).
func (ps Params) Enabled(key string) bool {
	p, ok := ps[key]
	if !ok || p.IsList() {
		return false
	}
	return p.Flag || p.Str == "1"
}

// Encode renders ps back into a query string with keys in sorted order.
// Lists are written with explicit indices so gaps survive a round trip.
func (ps Params) Encode() string {
	keys := make([]string, 0, len(ps))
	for k := range ps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		p := ps[k]
		if !p.IsList() {
			parts = append(parts, encodePair(k, p.Value))
			continue
		}
		for i, v := range p.List {
			if v == nil {
				continue
			}
			parts = append(parts, encodePair(k+"["+strconv.Itoa(i)+"]", *v))
		}
	}
	return strings.Join(parts, "&")
}

func encodePair(key string, v Value) string {
	if v.Flag {
		return key
	}
	return key + "=" + v.Str
}
