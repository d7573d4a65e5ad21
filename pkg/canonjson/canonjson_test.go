package canonjson_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgovern/lanegate/pkg/canonjson"
)

func TestCanonicalize_SortsKeysRecursively(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"b":{"z":1,"a":2},"a":[{"y":true,"x":false}]}`)

	out, err := canonjson.Canonicalize(raw, canonjson.Options{})

	require.NoError(t, err)

	expected := "{\n" +
		"  \"a\": [\n" +
		"    {\n" +
		"      \"x\": false,\n" +
		"      \"y\": true\n" +
		"    }\n" +
		"  ],\n" +
		"  \"b\": {\n" +
		"    \"a\": 2,\n" +
		"    \"z\": 1\n" +
		"  }\n" +
		"}\n"

	assert.Equal(t, expected, string(out))
}

func TestCanonicalize_PinsVolatileTimestamps(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"generated_at":"2026-02-10T12:34:56Z","nested":{"captured_at":"2026-01-01T00:00:00Z"},"name":"m"}`)

	out, err := canonjson.Canonicalize(raw, canonjson.Options{})

	require.NoError(t, err)
	assert.Contains(t, string(out), `"generated_at": "1970-01-01T00:00:00.000Z"`)
	assert.Contains(t, string(out), `"captured_at": "1970-01-01T00:00:00.000Z"`)
	assert.Contains(t, string(out), `"name": "m"`)
}

func TestCanonicalize_ScanDocumentUsesCompactEpoch(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"scanned_at":"20260210_123456000"}`)

	out, err := canonjson.Canonicalize(raw, canonjson.Options{LogicalPath: "ssot/repos/a/scan.json"})

	require.NoError(t, err)
	assert.Contains(t, string(out), `"scanned_at": "19700101_000000000"`)

	out, err = canonjson.Canonicalize(raw, canonjson.Options{LogicalPath: "other.json"})

	require.NoError(t, err)
	assert.Contains(t, string(out), `"scanned_at": "1970-01-01T00:00:00.000Z"`)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"z":[3,2,1],"a":{"updated_at":"2026-08-24T00:00:00Z","k":1.5},"empty":{},"list":[]}`)

	once, err := canonjson.Canonicalize(raw, canonjson.Options{})
	require.NoError(t, err)

	twice, err := canonjson.Canonicalize(once, canonjson.Options{})
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestCanonicalize_PreservesNumberForm(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"big":12345678901234567890,"float":0.25,"int":7}`)

	out, err := canonjson.Canonicalize(raw, canonjson.Options{})

	require.NoError(t, err)
	assert.Contains(t, string(out), `"big": 12345678901234567890`)
	assert.Contains(t, string(out), `"float": 0.25`)
}

func TestCanonicalizeValue_Struct(t *testing.T) {
	t.Parallel()

	doc := struct {
		Version   int    `json:"version"`
		CreatedAt string `json:"created_at"`
	}{Version: 1, CreatedAt: "2026-02-02T00:00:00Z"}

	out, err := canonjson.CanonicalizeValue(doc, canonjson.Options{})

	require.NoError(t, err)
	assert.Contains(t, string(out), `"created_at": "1970-01-01T00:00:00.000Z"`)
	assert.Contains(t, string(out), `"version": 1`)
}

func TestCanonicalize_MalformedInput(t *testing.T) {
	t.Parallel()

	_, err := canonjson.Canonicalize([]byte(`{"a":`), canonjson.Options{})

	require.Error(t, err)
}
