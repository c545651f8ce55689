// Package currencies provides the currency code lookup table injected into
// the resource trees. Validation is always an explicit choice: callers pick
// the ISO registry, a versioned table of their own, or no validation at all.
package currencies

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/currency"
	yaml "gopkg.in/yaml.v2"
)

type Table struct {
	version string
	codes   map[string]struct{}
	iso     bool
	off     bool
}

func (t *Table) Version() string { return t.version }

// Valid reports whether the given code belongs to the table. A disabled
// table accepts everything.
func (t *Table) Valid(code string) bool {
	if t.off {
		return true
	}

	code = strings.ToUpper(strings.TrimSpace(code))

	if t.iso {
		_, err := currency.ParseISO(code)
		return err == nil
	}

	_, ok := t.codes[code]
	return ok
}

// Default returns a table backed by the ISO 4217 registry.
func Default() *Table {
	return &Table{
		version: "iso-4217",
		iso:     true,
	}
}

// Disabled returns a table that accepts every code. Use this to switch
// validation off on purpose.
func Disabled() *Table {
	return &Table{
		version: "disabled",
		off:     true,
	}
}

// New builds a table from an explicit code list.
func New(version string, codes []string) *Table {
	t := &Table{
		version: version,
		codes:   make(map[string]struct{}, len(codes)),
	}

	for _, code := range codes {
		t.codes[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}

	return t
}

type tableDocument struct {
	Version string   `yaml:"version"`
	Codes   []string `yaml:"codes"`
}

// Load reads a table document of the form {version: ..., codes: [...]}.
func Load(data io.Reader) (*Table, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	doc := &tableDocument{}
	err = yaml.Unmarshal(buf, &doc)
	if err != nil {
		return nil, err
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("currency table document lacks a version")
	}

	return New(doc.Version, doc.Codes), nil
}
