/*
Package format loads record schemas from YAML format definitions.

A format document declares named records:

	records:
	  header:
	    fields:
	      - name: magic
	        type: bytes
	        size: 4
	        const: "52494646"
	      - name: length
	        type: uint32
	        length_of: body
	      - name: body
	        type: bytes
	        size_ref: length

Records reference each other through the record type and embed, references
resolve across the whole document regardless of declaration order, cycles
are configuration errors. Unions, presence predicates and custom validators
have no YAML form, records needing them are declared in Go through the
record package builder.
*/
package format

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/nspcc-dev/binrec/pkg/record"
	"gopkg.in/yaml.v3"
)

// ErrUnknownRecord is returned by Set.Schema for names the document does
// not declare.
var ErrUnknownRecord = errors.New("unknown record")

// Set is an ordered registry of schemas built from one format document.
type Set struct {
	names   []string
	schemas map[string]*record.Schema
}

// Names returns the record names in document order.
func (s *Set) Names() []string {
	return slices.Clone(s.names)
}

// Schema returns the named schema.
func (s *Set) Schema(name string) (*record.Schema, error) {
	sch, ok := s.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, name)
	}
	return sch, nil
}

// Load reads and parses a format file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read format file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse builds all records declared in a YAML format document.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid format document: %w", err)
	}
	if len(doc.Records) == 0 {
		return nil, fmt.Errorf("%w: format document declares no records", record.ErrConfiguration)
	}
	p := &parser{
		defs:  make(map[string]*recordDef, len(doc.Records)),
		state: make(map[string]buildState, len(doc.Records)),
		built: make(map[string]*record.Schema, len(doc.Records)),
	}
	for i := range doc.Records {
		nr := &doc.Records[i]
		if _, dup := p.defs[nr.name]; dup {
			return nil, fmt.Errorf("%w: record %q declared twice", record.ErrConfiguration, nr.name)
		}
		p.defs[nr.name] = &nr.def
		p.order = append(p.order, nr.name)
	}
	for _, name := range p.order {
		if err := p.buildRecord(name); err != nil {
			return nil, err
		}
	}
	return &Set{names: p.order, schemas: p.built}, nil
}

// document is the top level of a format file.
type document struct {
	Records namedRecords `yaml:"records"`
}

type recordDef struct {
	Embed  string     `yaml:"embed"`
	Fields []fieldDef `yaml:"fields"`
}

type namedRecord struct {
	name string
	def  recordDef
}

// namedRecords keeps the document order of the records mapping, which a
// plain map would lose.
type namedRecords []namedRecord

// UnmarshalYAML implements the YAML unmarshaler interface.
func (n *namedRecords) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: records must be a mapping", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		var nr namedRecord
		if err := node.Content[i].Decode(&nr.name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&nr.def); err != nil {
			return err
		}
		*n = append(*n, nr)
	}
	return nil
}

type buildState byte

const (
	notBuilt buildState = iota
	building
	done
)

// parser builds schemas out of parsed record definitions, following
// references depth-first so that every record is built after the records
// it depends on.
type parser struct {
	order []string
	defs  map[string]*recordDef
	state map[string]buildState
	built map[string]*record.Schema
}

// resolve returns the schema for a referenced record, building it first if
// needed. from names the referencing record for error context.
func (p *parser) resolve(from, name string) (*record.Schema, error) {
	if _, ok := p.defs[name]; !ok {
		return nil, fmt.Errorf("%w: record %q references unknown record %q", record.ErrConfiguration, from, name)
	}
	if err := p.buildRecord(name); err != nil {
		return nil, err
	}
	return p.built[name], nil
}

func (p *parser) buildRecord(name string) error {
	switch p.state[name] {
	case done:
		return nil
	case building:
		return fmt.Errorf("%w: record reference cycle through %q", record.ErrConfiguration, name)
	}
	p.state[name] = building

	def := p.defs[name]
	b := record.NewBuilder(name)
	if def.Embed != "" {
		parent, err := p.resolve(name, def.Embed)
		if err != nil {
			return err
		}
		b.Embed(parent)
	}
	for i := range def.Fields {
		fd := &def.Fields[i]
		if fd.Name == "" {
			return fmt.Errorf("%w: record %q: field %d has no name", record.ErrConfiguration, name, i)
		}
		spec, err := p.fieldSpec(name, fd)
		if err != nil {
			return fmt.Errorf("record %q: field %q: %w", name, fd.Name, err)
		}
		b.Add(spec)
	}
	s, err := b.Build()
	if err != nil {
		return err
	}
	p.built[name] = s
	p.state[name] = done
	return nil
}
