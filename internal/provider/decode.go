package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	t "github.com/evanhutnik/geocode-proxy/internal/types"
)

// errNoData means the response is well formed but holds nothing at the coordinate path.
var errNoData = errors.New("no data at coordinate path")

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", t.ErrMalformedProviderConfig, fmt.Sprintf(format, args...))
}

// extract walks doc along path. A missing key, an out of range index, an integer index into
// a mapping or a null anywhere on the path, lat/lng values included, yields errNoData.
// Indexing a scalar, keying into a sequence, or a lat/lng pair that does not resolve to two
// numbers is a configuration defect.
func extract(doc interface{}, path t.Path) (t.Coordinates, error) {
	node := doc
	for i, seg := range path.Steps {
		next, err := step(node, seg)
		if err != nil {
			return t.Coordinates{}, fmt.Errorf("segment %d (%v): %w", i, seg, err)
		}
		node = next
	}

	lat, err := number(node, path.Lat)
	if err != nil {
		return t.Coordinates{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := number(node, path.Lng)
	if err != nil {
		return t.Coordinates{}, fmt.Errorf("longitude: %w", err)
	}
	return t.Coordinates{Latitude: lat, Longitude: lng}, nil
}

func step(node interface{}, seg t.Segment) (interface{}, error) {
	switch v := node.(type) {
	case nil:
		return nil, errNoData
	case map[string]interface{}:
		if seg.IsIndex() {
			return nil, errNoData
		}
		next, ok := v[seg.Key()]
		if !ok {
			return nil, errNoData
		}
		return next, nil
	case []interface{}:
		if !seg.IsIndex() {
			return nil, malformed("cannot index a sequence with key %q", seg.Key())
		}
		i, ok := position(len(v), seg.Index())
		if !ok {
			return nil, errNoData
		}
		return v[i], nil
	default:
		return nil, malformed("cannot index %T value with %v", node, seg)
	}
}

func number(node interface{}, seg t.Segment) (float64, error) {
	var value interface{}
	switch v := node.(type) {
	case nil:
		return 0, errNoData
	case map[string]interface{}:
		var ok bool
		if seg.IsIndex() {
			return 0, malformed("cannot read index %d from a mapping", seg.Index())
		}
		if value, ok = v[seg.Key()]; !ok {
			return 0, malformed("key %q not present", seg.Key())
		}
	case []interface{}:
		if !seg.IsIndex() {
			return 0, malformed("cannot read key %q from a sequence", seg.Key())
		}
		i, ok := position(len(v), seg.Index())
		if !ok {
			return 0, malformed("index %d out of range", seg.Index())
		}
		value = v[i]
	default:
		return 0, malformed("cannot read %v from %T value", seg, node)
	}

	switch n := value.(type) {
	case nil:
		return 0, errNoData
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, malformed("value %q at %v is not numeric", n, seg)
		}
		return f, nil
	default:
		return 0, malformed("value at %v is %T, not a number", seg, value)
	}
}

// position resolves a possibly negative index against a sequence of length n.
func position(n, i int) (int, bool) {
	if i < 0 {
		i += n
	}
	return i, i >= 0 && i < n
}
