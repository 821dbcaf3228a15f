package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Segment indexes one level of a decoded JSON document, either by mapping key or by
// sequence position.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

func Key(k string) Segment {
	return Segment{key: k}
}

func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

func (s Segment) IsIndex() bool { return s.isIndex }
func (s Segment) Key() string   { return s.key }
func (s Segment) Index() int    { return s.index }

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Path locates latitude and longitude inside a provider response: Steps walk down to the
// node holding both values, Lat and Lng pick them out of it.
type Path struct {
	Steps []Segment
	Lat   Segment
	Lng   Segment
}

func (p Path) String() string {
	parts := make([]string, 0, len(p.Steps)+1)
	for _, s := range p.Steps {
		parts = append(parts, s.String())
	}
	parts = append(parts, fmt.Sprintf("[%s,%s]", p.Lat, p.Lng))
	return strings.Join(parts, ".")
}

// ParsePath builds a Path from its configuration form, e.g.
// ["results", 0, "geometry", "location", ["lat", "lng"]].
func ParsePath(raw []interface{}) (Path, error) {
	if len(raw) == 0 {
		return Path{}, fmt.Errorf("%w: empty coordinate path", ErrMalformedProviderConfig)
	}

	var p Path
	for i, item := range raw[:len(raw)-1] {
		seg, err := parseSegment(item)
		if err != nil {
			return Path{}, fmt.Errorf("%w: coordinate path segment %d: %s", ErrMalformedProviderConfig, i, err.Error())
		}
		p.Steps = append(p.Steps, seg)
	}

	pair, ok := raw[len(raw)-1].([]interface{})
	if !ok || len(pair) != 2 {
		return Path{}, fmt.Errorf("%w: last coordinate path segment must be a [latitude, longitude] pair, got %v",
			ErrMalformedProviderConfig, raw[len(raw)-1])
	}
	var err error
	if p.Lat, err = parseSegment(pair[0]); err != nil {
		return Path{}, fmt.Errorf("%w: latitude key: %s", ErrMalformedProviderConfig, err.Error())
	}
	if p.Lng, err = parseSegment(pair[1]); err != nil {
		return Path{}, fmt.Errorf("%w: longitude key: %s", ErrMalformedProviderConfig, err.Error())
	}
	return p, nil
}

func parseSegment(item interface{}) (Segment, error) {
	switch v := item.(type) {
	case string:
		return Key(v), nil
	case int:
		return Index(v), nil
	case int64:
		return Index(int(v)), nil
	case float64:
		// encoding/json decodes every number as float64
		if v != math.Trunc(v) {
			return Segment{}, fmt.Errorf("index %v is not an integer", v)
		}
		return Index(int(v)), nil
	default:
		return Segment{}, fmt.Errorf("unsupported segment %v (%T)", item, item)
	}
}
