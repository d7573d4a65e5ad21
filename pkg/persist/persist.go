// Package persist provides atomic JSON document I/O for the knowledge and
// governance filesystems. Documents are pretty-printed with 2-space
// indentation and written through the temp-rename substrate.
package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/opsgovern/lanegate/pkg/fsx"
)

// indent is the document indentation unit.
const indent = "  "

// WriteJSON marshals doc and writes it atomically to absPath.
func WriteJSON(absPath string, doc any) error {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", indent)
	encoder.SetEscapeHTML(false)

	err := encoder.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", absPath, err)
	}

	err = fsx.WriteFileAtomic(absPath, buf.Bytes())
	if err != nil {
		return fmt.Errorf("write %s: %w", absPath, err)
	}

	return nil
}

// ReadJSON reads and unmarshals the document at absPath into doc.
func ReadJSON(absPath string, doc any) error {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", absPath, err)
	}

	err = json.Unmarshal(raw, doc)
	if err != nil {
		return fmt.Errorf("decode %s: %w", absPath, err)
	}

	return nil
}

// Exists reports whether a regular file exists at absPath.
func Exists(absPath string) bool {
	info, err := os.Stat(absPath)

	return err == nil && info.Mode().IsRegular()
}
