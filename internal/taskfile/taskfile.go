// Package taskfile decodes task definition files.
package taskfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for file extensions with no decoder.
var ErrUnsupportedFormat = errors.New("taskfile: unsupported format")

// Record is one task entry as written in a task file.
type Record struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Goal        string `json:"goal" yaml:"goal"`
	Action      string `json:"action" yaml:"action"`
	Parameters  string `json:"parameters" yaml:"parameters"`
}

// Decode parses data as a list of records, choosing the format from the
// extension of name: .json, .json5, .yaml or .yml.
func Decode(name string, data []byte) ([]Record, error) {
	var (
		recs []Record
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		err = sonic.Unmarshal(data, &recs)
	case ".json5":
		err = json5.Unmarshal(data, &recs)
	case ".yaml", ".yml":
		err = decodeYAML(data, &recs)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("taskfile: decode %s: %w", filepath.Base(name), err)
	}
	return recs, nil
}

func decodeYAML(data []byte, out *[]Record) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
