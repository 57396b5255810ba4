package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Strategy turns the raw bytes of one file into document texts, one per
// produced document.
type Strategy interface {
	Parse(data []byte) ([]string, error)
}

// Strategies maps a lower-cased extension (with its dot) to a Strategy.
type Strategies map[string]Strategy

// StrategyConfig carries the field locations used by DefaultStrategies.
type StrategyConfig struct {
	JSONPointer  string
	JSONLPointer string
	JSONLHTML    bool
	CSVColumn    string
}

// DefaultStrategies registers .json, .jsonl, .txt, .mdx and .csv.
func DefaultStrategies(cfg StrategyConfig) Strategies {
	var jsonl Strategy = JSONLinesStrategy{Pointer: cfg.JSONLPointer}
	if cfg.JSONLHTML {
		jsonl = HTMLStrategy{Inner: jsonl}
	}

	return Strategies{
		".json":  JSONStrategy{Pointer: cfg.JSONPointer},
		".jsonl": jsonl,
		".txt":   TextStrategy{},
		".mdx":   TextStrategy{},
		".csv":   CSVStrategy{Column: cfg.CSVColumn},
	}
}

// TextStrategy passes the file through as UTF-8 text.
type TextStrategy struct{}

func (TextStrategy) Parse(data []byte) ([]string, error) {
	return []string{sanitizeUTF8(string(data))}, nil
}

// JSONStrategy extracts every string found under a JSON pointer such as
// "/texts". An empty pointer selects the whole document.
type JSONStrategy struct {
	Pointer string
}

func (s JSONStrategy) Parse(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}

	root := gjson.ParseBytes(data)
	if path := pointerToPath(s.Pointer); path != "" {
		root = root.Get(path)
		if !root.Exists() {
			return nil, fmt.Errorf("pointer %q not found", s.Pointer)
		}
	}

	return collectStrings(root, nil), nil
}

// JSONLinesStrategy extracts the pointer field of every line. Lines that
// lack the field are skipped; malformed lines fail the file.
type JSONLinesStrategy struct {
	Pointer string
}

func (s JSONLinesStrategy) Parse(data []byte) ([]string, error) {
	path := pointerToPath(s.Pointer)

	var texts []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("line %d: invalid JSON", line)
		}

		value := gjson.ParseBytes(raw)
		if path != "" {
			value = value.Get(path)
		}
		if !value.Exists() {
			continue
		}

		texts = append(texts, strings.Join(collectStrings(value, nil), "\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return texts, nil
}

// CSVStrategy produces one text per row from the named header column.
type CSVStrategy struct {
	Column string
}

func (s CSVStrategy) Parse(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}

	column := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == s.Column {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, fmt.Errorf("column %q not found", s.Column)
	}

	var texts []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if column < len(record) {
			texts = append(texts, sanitizeUTF8(record[column]))
		}
	}

	return texts, nil
}

// pointerToPath converts a JSON pointer ("/a/0/b") into a gjson path ("a.0.b").
func pointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}

	parts := strings.Split(pointer, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		parts[i] = escapePathComponent(part)
	}
	return strings.Join(parts, ".")
}

func escapePathComponent(part string) string {
	var b strings.Builder
	for _, r := range part {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collectStrings(value gjson.Result, out []string) []string {
	switch {
	case value.Type == gjson.String:
		out = append(out, value.String())
	case value.IsArray() || value.IsObject():
		value.ForEach(func(_, v gjson.Result) bool {
			out = collectStrings(v, out)
			return true
		})
	}
	return out
}

// sanitizeUTF8 drops invalid bytes and NULs, which no store can hold.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
