package tumblr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// decodeJSON parses body into a generic tree, keeping numbers as json.Number
// so large post ids survive. The body must hold exactly one JSON value.
func decodeJSON(body []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var root any
	if err := decoder.Decode(&root); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("tumblr: unexpected data after JSON body")
	}
	return root, nil
}

// Lookup walks a decoded JSON tree. String steps index objects and int steps
// index arrays; a missing step reports false instead of failing.
func Lookup(root any, path ...any) (any, bool) {
	current := root
	for _, step := range path {
		switch key := step.(type) {
		case string:
			object, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = object[key]
			if !ok {
				return nil, false
			}
		case int:
			items, ok := current.([]any)
			if !ok || key < 0 || key >= len(items) {
				return nil, false
			}
			current = items[key]
		default:
			return nil, false
		}
	}
	return current, true
}

func lookupString(root any, path ...any) string {
	value, ok := Lookup(root, path...)
	if !ok {
		return ""
	}
	return readString(value)
}

func lookupSlice(root any, path ...any) []any {
	value, ok := Lookup(root, path...)
	if !ok {
		return nil
	}
	items, _ := value.([]any)
	return items
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readBool(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	case json.Number:
		parsed, err := typed.Int64()
		return err == nil && parsed != 0
	default:
		return false
	}
}
