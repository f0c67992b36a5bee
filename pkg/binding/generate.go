package binding

import (
	"bytes"
	"errors"
	"fmt"
	gofmt "go/format"
	gio "io"
	"sort"
	"strings"
	"text/template"

	"github.com/nspcc-dev/binrec/pkg/format"
	"github.com/nspcc-dev/binrec/pkg/record"
)

const srcTmpl = `// Code generated by binrec schema gen; DO NOT EDIT.

package {{.Package}}
{{- if .Imports}}

import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{- end}}
{{- range $r := .Records}}

// {{$r.TypeName}} matches the "{{$r.Name}}" record layout.
type {{$r.TypeName}} struct {
{{- range $f := $r.Fields}}
	{{$f.Name}} {{$f.Type}} ` + "`binrec:\"{{$f.Tag}}\"`" + `
{{- end}}
}
{{- end}}
`

var srcTemplate = template.Must(template.New("bindings").Parse(srcTmpl))

// Config drives Generate.
type Config struct {
	// Package is the package name of the generated source.
	Package string
	// Set holds the records to emit struct types for.
	Set *format.Set
	// Output receives the generated source.
	Output gio.Writer
}

type sourceTmpl struct {
	Package string
	Imports []string
	Records []recordTmpl
}

type recordTmpl struct {
	Name     string
	TypeName string
	Fields   []fieldTmpl
}

type fieldTmpl struct {
	Name string
	Type string
	Tag  string
}

// Generate writes Go struct definitions with binrec tags for every record
// in cfg.Set. The emitted types reproduce their records through Derive,
// behavior that only exists as code (callbacks, unions, custom encodings)
// is not part of format definitions and so never appears here.
func Generate(cfg Config) error {
	if cfg.Package == "" || cfg.Set == nil || cfg.Output == nil {
		return errors.New("package, set and output are all required")
	}
	data := sourceTmpl{Package: cfg.Package}
	imports := make(map[string]struct{})
	for _, name := range cfg.Set.Names() {
		s, err := cfg.Set.Schema(name)
		if err != nil {
			return err
		}
		rt := recordTmpl{Name: name, TypeName: typeName(name)}
		for _, f := range s.Fields() {
			rt.Fields = append(rt.Fields, fieldTmpl{
				Name: typeName(f.Name()),
				Type: goType(f, imports),
				Tag:  fieldTag(f),
			})
		}
		data.Records = append(data.Records, rt)
	}
	for imp := range imports {
		data.Imports = append(data.Imports, imp)
	}
	sort.Strings(data.Imports)

	var buf bytes.Buffer
	if err := srcTemplate.Execute(&buf, data); err != nil {
		return err
	}
	src, err := gofmt.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("generated source does not parse: %w", err)
	}
	_, err = cfg.Output.Write(src)
	return err
}

// fieldTag renders the field's tag with the wire name made explicit, so the
// generated struct survives renames of its Go fields.
func fieldTag(f *record.FieldSpec) string {
	typ, rest, ok := strings.Cut(f.Tag(), ",")
	tag := typ + ",name=" + f.Name()
	if ok {
		tag += "," + rest
	}
	return tag
}

// goType maps a field to the Go type holding its values, collecting the
// imports those types need.
func goType(f *record.FieldSpec, imports map[string]struct{}) string {
	typ, _, _ := strings.Cut(f.Tag(), ",")
	var base string
	switch typ {
	case "uint8", "uint16", "uint32", "uint64", "int8", "int16", "int32", "int64",
		"float32", "float64":
		base = typ
	case "varuint":
		base = "uint64"
	case "varint":
		base = "int64"
	case "bigint":
		imports["math/big"] = struct{}{}
		base = "*big.Int"
	case "uuid":
		imports["github.com/google/uuid"] = struct{}{}
		base = "uuid.UUID"
	case "timestamp32", "timestamp64":
		imports["time"] = struct{}{}
		base = "time.Time"
	case "bytes":
		base = "[]byte"
	case "string", "stringz":
		base = "string"
	case "record":
		base = typeName(f.Inner().Name())
	case "array":
		if e := f.Elem(); e != nil && e.Inner() != nil {
			base = "[]" + typeName(e.Inner().Name())
		} else if e != nil {
			base = "[]" + goType(e, imports)
		} else {
			base = "[]any"
		}
	default:
		base = "any"
	}
	if f.Nullable() && !strings.HasPrefix(base, "[]") && !strings.HasPrefix(base, "*") {
		base = "*" + base
	}
	return base
}

// typeName converts a wire name to an exported Go identifier, pixel_row
// becomes PixelRow.
func typeName(s string) string {
	parts := strings.Split(s, "_")
	out := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p[:1])+p[1:])
	}
	return strings.Join(out, "")
}
