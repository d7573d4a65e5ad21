// Package canonjson renders JSON deterministically: keys sorted, volatile
// timestamp values pinned to fixed constants, 2-space indentation, trailing
// newline. It is the only serializer used for bundle inputs and manifests so
// content hashes are stable across runs.
package canonjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedType indicates a value that has no JSON representation.
var ErrUnsupportedType = errors.New("unsupported json value type")

// Fixed replacement values for volatile timestamp keys.
const (
	// EpochRFC3339 replaces volatile RFC3339 timestamps.
	EpochRFC3339 = "1970-01-01T00:00:00.000Z"
	// EpochCompact replaces scanned_at inside scan documents, which use a
	// filesystem-safe compact timestamp form.
	EpochCompact = "19700101_000000000"
)

// indent is the canonical indentation unit.
const indent = "  "

// scanSuffix marks logical paths whose scanned_at uses the compact form.
const scanSuffix = "/scan.json"

// volatileKeys is the closed set of keys whose values are rewritten before
// hashing. Membership is exact; no prefix or suffix matching.
var volatileKeys = map[string]bool{
	"generated_at": true,
	"captured_at":  true,
	"scanned_at":   true,
	"updated_at":   true,
	"last_seen_at": true,
	"run_at":       true,
	"created_at":   true,
}

// Options controls canonicalization.
type Options struct {
	// LogicalPath is the bundle-relative path of the document being
	// canonicalized. It selects the scanned_at replacement constant.
	LogicalPath string
}

// Canonicalize parses raw JSON and re-emits it canonically.
func Canonicalize(raw []byte, opts Options) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any

	err := decoder.Decode(&value)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return CanonicalizeValue(value, opts)
}

// CanonicalizeValue renders an already-decoded JSON value canonically.
// Struct values are first round-tripped through encoding/json.
func CanonicalizeValue(value any, opts Options) ([]byte, error) {
	decoded, err := reify(value)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	err = writeValue(&buf, decoded, 0, opts)
	if err != nil {
		return nil, err
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// reify converts arbitrary Go values (including structs) into the generic
// map/slice/json.Number representation the writer understands.
func reify(value any) (any, error) {
	switch value.(type) {
	case nil, bool, string, json.Number, map[string]any, []any:
		return value, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var decoded any

	err = decoder.Decode(&decoded)
	if err != nil {
		return nil, fmt.Errorf("reparse value: %w", err)
	}

	return decoded, nil
}

func writeValue(buf *bytes.Buffer, value any, depth int, opts Options) error {
	switch typed := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if typed {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeString(buf, typed)
	case json.Number:
		buf.WriteString(typed.String())
	case float64:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Errorf("marshal number: %w", err)
		}

		buf.Write(raw)
	case []any:
		return writeArray(buf, typed, depth, opts)
	case map[string]any:
		return writeObject(buf, typed, depth, opts)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, value)
	}

	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal string: %w", err)
	}

	buf.Write(raw)

	return nil
}

func writeArray(buf *bytes.Buffer, values []any, depth int, opts Options) error {
	if len(values) == 0 {
		buf.WriteString("[]")

		return nil
	}

	buf.WriteString("[\n")

	for i, item := range values {
		buf.WriteString(strings.Repeat(indent, depth+1))

		err := writeValue(buf, item, depth+1, opts)
		if err != nil {
			return err
		}

		if i < len(values)-1 {
			buf.WriteByte(',')
		}

		buf.WriteByte('\n')
	}

	buf.WriteString(strings.Repeat(indent, depth))
	buf.WriteByte(']')

	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any, depth int, opts Options) error {
	if len(obj) == 0 {
		buf.WriteString("{}")

		return nil
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	buf.WriteString("{\n")

	for i, key := range keys {
		buf.WriteString(strings.Repeat(indent, depth+1))

		err := writeString(buf, key)
		if err != nil {
			return err
		}

		buf.WriteString(": ")

		value := obj[key]
		if volatileKeys[key] {
			value = replacementFor(key, opts)
		}

		err = writeValue(buf, value, depth+1, opts)
		if err != nil {
			return err
		}

		if i < len(keys)-1 {
			buf.WriteByte(',')
		}

		buf.WriteByte('\n')
	}

	buf.WriteString(strings.Repeat(indent, depth))
	buf.WriteByte('}')

	return nil
}

// replacementFor picks the pinned constant for a volatile key. scanned_at in
// scan documents uses the compact timestamp form the scanner writes.
func replacementFor(key string, opts Options) string {
	if key == "scanned_at" && strings.HasSuffix(opts.LogicalPath, scanSuffix) {
		return EpochCompact
	}

	return EpochRFC3339
}
