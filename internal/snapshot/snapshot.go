// Package snapshot reads and writes whole-store payloads as files, and loads
// business profiles from TOML.
//
// Snapshots use the same field names as the sync transport, so a JSON backup
// can be posted to the sync endpoint as-is. YAML snapshots carry the same
// document. JSONL snapshots hold one record per line for line-oriented tools.
// Money values stay quoted strings in every format.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/retailbill/billsync/internal/schema"
)

// Format is a snapshot file encoding.
type Format string

const (
	JSON  Format = "json"
	YAML  Format = "yaml"
	JSONL Format = "jsonl"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	}
	return "", fmt.Errorf("unknown snapshot format %q (want json, yaml or jsonl)", s)
}

// FormatFromPath infers the format from a file extension. Unknown
// extensions are JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	case ".jsonl", ".ndjson":
		return JSONL
	}
	return JSON
}

// Write encodes p to w.
func Write(w io.Writer, format Format, p *schema.Payload) error {
	if p == nil {
		return fmt.Errorf("nil payload")
	}

	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to encode json snapshot: %w", err)
		}
		return nil

	case YAML:
		// Go through the JSON form so YAML keys and money strings match it.
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml snapshot: %w", err)
		}
		return enc.Close()

	case JSONL:
		return writeLines(w, p)
	}
	return fmt.Errorf("unknown snapshot format %q", format)
}

// Read decodes a payload from r.
func Read(r io.Reader, format Format) (*schema.Payload, error) {
	switch format {
	case JSON:
		var p schema.Payload
		if err := json.NewDecoder(r).Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode json snapshot: %w", err)
		}
		return &p, nil

	case YAML:
		var doc any
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode yaml snapshot: %w", err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode yaml snapshot: %w", err)
		}
		var p schema.Payload
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode yaml snapshot: %w", err)
		}
		return &p, nil

	case JSONL:
		return readLines(r)
	}
	return nil, fmt.Errorf("unknown snapshot format %q", format)
}

// WriteFile writes p to path in the format implied by its extension.
func WriteFile(path string, p *schema.Payload) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	// Write to a temp file and rename so a failed backup never truncates
	// an existing one.
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := Write(f, FormatFromPath(path), p); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ReadFile reads a payload from path in the format implied by its extension.
func ReadFile(path string) (*schema.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Read(f, FormatFromPath(path))
}
