package bundle

import (
	"bytes"
	"path"

	"github.com/opsgovern/lanegate/pkg/canonjson"
)

// textExtensions are normalized to LF line endings with a trailing newline.
var textExtensions = map[string]bool{
	".md":      true,
	".txt":     true,
	".jsonl":   true,
	".yml":     true,
	".yaml":    true,
	".graphql": true,
	".proto":   true,
	".js":      true,
	".ts":      true,
	".tsx":     true,
	".jsx":     true,
	".css":     true,
	".html":    true,
}

// normalizeContent makes file bytes deterministic for hashing: JSON is
// canonicalized, text gets LF endings and a trailing newline, anything else
// passes through.
func normalizeContent(logicalPath string, raw []byte) ([]byte, error) {
	ext := path.Ext(logicalPath)

	if ext == ".json" {
		return canonjson.Canonicalize(raw, canonjson.Options{LogicalPath: logicalPath})
	}

	if textExtensions[ext] {
		normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))

		if len(normalized) > 0 && normalized[len(normalized)-1] != '\n' {
			normalized = append(normalized, '\n')
		}

		return normalized, nil
	}

	return raw, nil
}
