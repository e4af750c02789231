package expressions

import (
	"errors"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

var ErrNotImplemented = errors.New("expressions: not implemented")

// MultiMap exposes a map of string lists, such as request headers or query
// parameters, to CEL programs as map(string, string). A key with several
// values reads as the values joined with commas.
type MultiMap struct {
	values map[string][]string
	key    func(string) string
}

// Headers wraps h. Lookups are case insensitive, so headers["user-agent"]
// and headers["User-Agent"] are the same entry.
func Headers(h http.Header) MultiMap {
	return MultiMap{values: h, key: http.CanonicalHeaderKey}
}

// Query wraps v. Lookups are exact.
func Query(v url.Values) MultiMap {
	return MultiMap{values: v}
}

func (m MultiMap) lookup(key string) ([]string, bool) {
	if m.key != nil {
		key = m.key(key)
	}
	result, ok := m.values[key]
	return result, ok
}

func (m MultiMap) ConvertToNative(reflect.Type) (any, error) {
	return nil, ErrNotImplemented
}

func (m MultiMap) ConvertToType(typeVal ref.Type) ref.Val {
	switch typeVal {
	case types.MapType:
		return m
	case types.TypeType:
		return types.MapType
	}

	return types.NewErr("can't convert from %q to %q", types.MapType, typeVal)
}

// Equal is always false, request maps are not compared.
func (m MultiMap) Equal(ref.Val) ref.Val { return types.False }

func (m MultiMap) Type() ref.Type { return types.MapType }

func (m MultiMap) Value() any { return m.values }

func (m MultiMap) Find(key ref.Val) (ref.Val, bool) {
	k, ok := key.(types.String)
	if !ok {
		return nil, false
	}

	vals, ok := m.lookup(string(k))
	if !ok {
		return nil, false
	}

	return types.String(strings.Join(vals, ",")), true
}

func (m MultiMap) Contains(key ref.Val) ref.Val {
	_, ok := m.Find(key)
	return types.Bool(ok)
}

func (m MultiMap) Get(key ref.Val) ref.Val {
	result, ok := m.Find(key)
	if !ok {
		return types.ValOrErr(result, "no such key: %v", key)
	}
	return result
}

// Iterator walks the keys in sorted order so that exists() and all() see a
// stable sequence.
func (m MultiMap) Iterator() traits.Iterator {
	return &keyIterator{keys: slices.Sorted(maps.Keys(m.values))}
}

func (m MultiMap) IsZeroValue() bool { return len(m.values) == 0 }

func (m MultiMap) Size() ref.Val { return types.Int(len(m.values)) }

type keyIterator struct {
	keys []string
	pos  int
}

func (it *keyIterator) HasNext() ref.Val {
	return types.Bool(it.pos < len(it.keys))
}

func (it *keyIterator) Next() ref.Val {
	if it.pos >= len(it.keys) {
		return nil
	}

	result := types.String(it.keys[it.pos])
	it.pos++
	return result
}

func (it *keyIterator) ConvertToNative(reflect.Type) (any, error) {
	return nil, ErrNotImplemented
}

func (it *keyIterator) ConvertToType(ref.Type) ref.Val {
	return types.NewErr("can't convert an iterator")
}

func (it *keyIterator) Equal(ref.Val) ref.Val { return types.False }

func (it *keyIterator) Type() ref.Type { return types.IteratorType }

func (it *keyIterator) Value() any { return it.keys }
