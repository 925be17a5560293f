package benchmark

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/aecr/internal/domain/model"
)

// document is the on-disk layout of a benchmark seed file.
type document struct {
	Benchmarks []model.BenchmarkRow `yaml:"benchmarks"`
}

// Decode reads a YAML benchmark document. Unknown fields are rejected so a
// renamed column fails loudly instead of loading zeros.
func Decode(r io.Reader) ([]model.BenchmarkRow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode benchmarks: %w", err)
	}
	return doc.Benchmarks, nil
}

// LoadFile builds a MemoryStore from a YAML file.
func LoadFile(path string) (*MemoryStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmarks %s: %w", path, err)
	}
	rows, err := Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewMemoryStore(rows)
}
