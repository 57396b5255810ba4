package models

import (
	"path/filepath"
	"strings"
)

// Extension is the lower-cased file extension of a source file, without the dot.
type Extension string

const (
	ExtJSON  Extension = "json"
	ExtJSONL Extension = "jsonl"
	ExtTXT   Extension = "txt"
	ExtMDX   Extension = "mdx"
	ExtCSV   Extension = "csv"
	ExtHTML  Extension = "html"
)

// ExtensionOf returns the Extension of a file path ("" when it has none).
func ExtensionOf(path string) Extension {
	return Extension(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Document is one unit of text produced by the loader. A single file may
// produce several documents (one per jsonl line or csv row).
type Document struct {
	ID         string
	SourcePath string
	Extension  Extension
	Text       string
	Metadata   map[string]string
}

// Chunk is a bounded, ordered slice of a Document's text.
type Chunk struct {
	ID                  string
	DocumentID          string
	ParentSourcePath    string
	Extension           Extension
	SequenceIndex       int
	Text                string
	OverlapWithPrevious int
	Metadata            map[string]string
}

// IndexEntry is a chunk paired with its embedding, addressed to a collection.
type IndexEntry struct {
	Chunk      Chunk
	Vector     []float32
	Collection string
}

// Turn is one answered question of a chat session.
type Turn struct {
	Question string
	Answer   string
}
