// Package export serializes table content for backup and transfer.
//
// Three formats are supported: JSON (the on-disk format), YAML for hand
// editing, and MessagePack for compact dumps.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/maruel/jsondb/internal/models"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format is a serialization format.
type Format string

const (
	// JSON is an indented JSON array.
	JSON Format = "json"
	// YAML is a YAML sequence of mappings.
	YAML Format = "yaml"
	// MsgPack is a MessagePack array of maps with sorted keys.
	MsgPack Format = "msgpack"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case JSON, YAML, MsgPack:
		return f, nil
	case "yml":
		return YAML, nil
	case "mp", "msgp":
		return MsgPack, nil
	}
	return "", fmt.Errorf("unknown format %q; use json, yaml or msgpack", s)
}

// FormatFromPath guesses the format from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		if f, err := ParseFormat(ext); err == nil {
			return f
		}
	}
	return JSON
}

// Encode writes rows to w in format f.
func Encode(w io.Writer, f Format, rows []models.Record) error {
	if rows == nil {
		rows = []models.Record{}
	}
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case MsgPack:
		var bb bytes.Buffer
		enc := msgpack.GetEncoder()
		enc.Reset(&bb)
		enc.SetSortMapKeys(true)
		err := enc.Encode(rows)
		msgpack.PutEncoder(enc)
		if err != nil {
			return fmt.Errorf("failed to encode MsgPack: %w", err)
		}
		_, err = w.Write(bb.Bytes())
		return err
	}
	return fmt.Errorf("unknown format %q", f)
}

// Decode reads rows from r in format f. Null entries are skipped.
func Decode(r io.Reader, f Format) ([]models.Record, error) {
	var rows []models.Record
	switch f {
	case JSON:
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
	case YAML:
		if err := yaml.NewDecoder(r).Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
	case MsgPack:
		dec := msgpack.GetDecoder()
		dec.Reset(r)
		dec.UseLooseInterfaceDecoding(true)
		err := dec.Decode(&rows)
		msgpack.PutDecoder(dec)
		if err != nil {
			return nil, fmt.Errorf("failed to decode MsgPack: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}
