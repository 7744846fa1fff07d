// Package scope resolves a student's enrollment scope from the LMS vendor and
// decides, per conversational turn, which allowed topic the student is asking
// about.
//
// The enrollment vendor returns arbitrarily-shaped JSON. Instead of ad-hoc
// type switching, the package parses the payload into a tagged Value tree and
// harvests phrases with an explicit visitor over a key-name allowlist.
package scope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the variant held by a [Value].
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of a JSON object. Object members preserve
// document order so that harvested phrases are deterministic.
type Member struct {
	Key   string
	Value Value
}

// Value is a parsed JSON value tagged by [Kind]. Exactly one of the payload
// fields is meaningful for a given kind.
type Value struct {
	Kind    Kind
	Str     string
	Num     float64
	Bool    bool
	Arr     []Value
	Members []Member
}

// Parse decodes raw JSON into a [Value] tree, preserving object member order.
func Parse(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("scope: parse enrollment JSON: %w", err)
	}
	// Trailing garbage after the first value is a malformed document.
	if dec.More() {
		return Value{}, fmt.Errorf("scope: parse enrollment JSON: trailing data")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return parseFromToken(dec, tok)
}

func parseFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case string:
		return Value{Kind: KindString, Str: t}, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindNumber, Num: f}, nil
	case json.Delim:
		switch t {
		case '{':
			obj := Value{Kind: KindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Members = append(obj.Members, Member{Key: key, Value: val})
			}
			// Consume the closing '}'.
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		case '[':
			arr := Value{Kind: KindArray}
			for dec.More() {
				elem, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr.Arr = append(arr.Arr, elem)
			}
			// Consume the closing ']'.
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return arr, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// Lookup returns the value of the first member whose normalised key equals
// key, and whether it was found. Only meaningful on objects.
func (v Value) Lookup(key string) (Value, bool) {
	for _, m := range v.Members {
		if normaliseKey(m.Key) == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Visitor receives every object member during a [Walk], depth-first in
// document order. key is the normalised member key.
type Visitor func(key string, value Value)

// Walk traverses the tree depth-first, invoking fn for every object member.
// Array elements are descended into but do not themselves trigger fn (they
// have no key).
func Walk(v Value, fn Visitor) {
	switch v.Kind {
	case KindObject:
		for _, m := range v.Members {
			fn(normaliseKey(m.Key), m.Value)
			Walk(m.Value, fn)
		}
	case KindArray:
		for _, elem := range v.Arr {
			Walk(elem, fn)
		}
	}
}

// normaliseKey lowercases a JSON key and strips separators so that
// "courseName", "course_name" and "course-name" all compare equal.
func normaliseKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, "-", "")
	return key
}

// collectStrings returns the string content of v: the value itself for
// strings, or all string elements for arrays of strings.
func collectStrings(v Value) []string {
	switch v.Kind {
	case KindString:
		if s := strings.TrimSpace(v.Str); s != "" {
			return []string{s}
		}
	case KindArray:
		var out []string
		for _, elem := range v.Arr {
			if elem.Kind == KindString {
				if s := strings.TrimSpace(elem.Str); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}
