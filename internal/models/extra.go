package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// Extra keeps JSON members a record does not model, so documents edited by
// hand or by older tooling survive a read-modify-write cycle untouched.
type Extra map[string]json.RawMessage

var knownKeysCache sync.Map // reflect.Type -> map[string]struct{}

// knownKeys returns the JSON member names declared by the struct type of v.
func knownKeys(v any) map[string]struct{} {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := knownKeysCache.Load(t); ok {
		return cached.(map[string]struct{})
	}

	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	knownKeysCache.Store(t, keys)
	return keys
}

// splitExtra returns the members of the JSON object b that are not declared
// on shape, minus any names in drop.
func splitExtra(b []byte, shape any, drop ...string) (Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}

	known := knownKeys(shape)
	extra := Extra{}
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		extra[k] = v
	}
	for _, k := range drop {
		delete(extra, k)
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

// mergeExtra marshals v and adds the extra members that v does not already
// define.
func mergeExtra(v any, extra Extra) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = raw
		}
	}
	return json.Marshal(obj)
}

// decodeList accepts both the canonical {"key": [...]} layout and a bare
// JSON array, which older documents used.
func decodeList[T any](b []byte, key string) ([]T, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}

	var list []T
	if b[0] == '[' {
		err := json.Unmarshal(b, &list)
		return list, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	raw, ok := obj[key]
	if !ok {
		return nil, nil
	}
	err := json.Unmarshal(raw, &list)
	return list, err
}

func encodeList[T any](key string, list []T) ([]byte, error) {
	if list == nil {
		list = []T{}
	}
	return json.Marshal(map[string][]T{key: list})
}
