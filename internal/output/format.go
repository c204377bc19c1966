package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Format represents the output format type.
type Format string

const (
	// FormatText is human-readable output (default on a terminal).
	FormatText Format = "text"
	// FormatJSON is pretty-printed JSON.
	FormatJSON Format = "json"
	// FormatNDJSON is newline-delimited JSON, one list item per line.
	FormatNDJSON Format = "ndjson"
	// FormatTable is tabular output for lists.
	FormatTable Format = "table"
	// FormatYAML is YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat converts a string to a Format. Empty means FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatNDJSON, FormatTable, FormatYAML:
		return f, nil
	default:
		return "", errors.New("invalid --output format (expected text|json|ndjson|table|yaml)")
	}
}

// IsStructured reports whether the format is machine-readable.
func IsStructured(format Format) bool {
	switch format {
	case FormatJSON, FormatNDJSON, FormatYAML:
		return true
	default:
		return false
	}
}

// TextRenderer is implemented by values with their own text layout.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// Tabular is implemented by values that know their table columns.
type Tabular interface {
	Table() Table
}

// Printer writes values in one output format.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a Printer that writes to w in the given format.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Format returns the printer's format.
func (p *Printer) Format() Format {
	return p.format
}

// Print outputs data in the configured format after applying the
// limit and sort options carried by ctx.
func (p *Printer) Print(ctx context.Context, data interface{}) error {
	if data == nil {
		return nil
	}

	data = ApplyAgentOptions(ctx, data)

	switch p.format {
	case FormatJSON:
		return p.printJSON(ctx, data, "  ")
	case FormatNDJSON:
		return p.printNDJSON(ctx, data)
	case FormatYAML:
		return p.printYAML(data)
	case FormatTable:
		return p.printTable(data)
	case FormatText:
		return p.printText(data)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

func (p *Printer) encoder(indent string) *json.Encoder {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc
}

func (p *Printer) printJSON(ctx context.Context, data interface{}, indent string) error {
	if query := QueryFromContext(ctx); query != "" {
		return runQuery(query, data, p.encoder(""))
	}
	return p.encoder(indent).Encode(data)
}

func (p *Printer) printNDJSON(ctx context.Context, data interface{}) error {
	enc := p.encoder("")
	if query := QueryFromContext(ctx); query != "" {
		return runQuery(query, data, enc)
	}

	items, ok := listItems(data)
	if !ok {
		return enc.Encode(data)
	}
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// runQuery filters data through a jq program and encodes every result.
// Data is first converted to plain JSON values, which is all gojq accepts.
func runQuery(query string, data interface{}, enc *json.Encoder) error {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}

	input, err := toJSONValue(data)
	if err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("query error: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
}

func toJSONValue(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	return v, nil
}

func (p *Printer) printYAML(data interface{}) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(data)
}

// printText writes renderers as they choose, structs as "label: value"
// lines and lists one item per line.
func (p *Printer) printText(data interface{}) error {
	if r, ok := data.(TextRenderer); ok {
		return r.RenderText(p.w)
	}

	v := indirect(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Map:
		return p.printTextMap(v)
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			_, err := fmt.Fprintln(p.w, formatTime(t))
			return err
		}
		return p.printTextStruct(v)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if _, err := fmt.Fprintln(p.w, cell(v.Index(i))); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(p.w, v.Interface())
		return err
	}
}

func (p *Printer) printTextMap(v reflect.Value) error {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})

	for _, key := range keys {
		if _, err := fmt.Fprintf(p.w, "%v: %s\n", key.Interface(), cell(v.MapIndex(key))); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) printTextStruct(v reflect.Value) error {
	for _, f := range exportedFields(v.Type()) {
		value := v.Field(f.index)
		if f.omitEmpty && value.IsZero() {
			continue
		}
		if _, err := fmt.Fprintf(p.w, "%s: %s\n", f.name, cell(value)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) printTable(data interface{}) error {
	switch t := data.(type) {
	case Table:
		return p.printTableData(t.Headers, t.Rows)
	case Tabular:
		table := t.Table()
		return p.printTableData(table.Headers, table.Rows)
	}

	items, ok := listItems(data)
	if !ok {
		return fmt.Errorf("table format requires a list of items")
	}
	if len(items) == 0 {
		return nil
	}

	headers, rows := buildTable(items)
	return p.printTableData(headers, rows)
}

func (p *Printer) printTableData(headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func buildTable(items []interface{}) ([]string, [][]string) {
	first := indirect(reflect.ValueOf(items[0]))
	if first.Kind() != reflect.Struct {
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{cell(reflect.ValueOf(item))})
		}
		return []string{"value"}, rows
	}

	fields := exportedFields(first.Type())
	headers := make([]string, 0, len(fields))
	for _, f := range fields {
		headers = append(headers, f.name)
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		v := indirect(reflect.ValueOf(item))
		row := make([]string, 0, len(fields))
		for _, f := range fields {
			if v.Kind() != reflect.Struct {
				row = append(row, "")
				continue
			}
			row = append(row, cell(v.Field(f.index)))
		}
		rows = append(rows, row)
	}
	return headers, rows
}

type fieldInfo struct {
	name      string
	index     int
	omitEmpty bool
}

// exportedFields lists a struct's exported fields under their JSON names.
func exportedFields(t reflect.Type) []fieldInfo {
	fields := make([]fieldInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		info := fieldInfo{name: f.Name, index: i}
		if tag := f.Tag.Get("json"); tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				info.name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					info.omitEmpty = true
				}
			}
		}
		fields = append(fields, info)
	}
	return fields
}

// cell formats a value for one line of text or one table cell. Nested
// lists collapse to their length.
func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return formatTime(t)
		}
	}
	return strings.ReplaceAll(fmt.Sprint(v.Interface()), "\n", " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// listItems returns the elements of a slice or of a struct's list field.
func listItems(data interface{}) ([]interface{}, bool) {
	v := indirect(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil, false
	}
	if v.Kind() == reflect.Struct {
		field, ok := listField(v)
		if !ok {
			return nil, false
		}
		v = field.value
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]interface{}, v.Len())
	for i := range items {
		items[i] = v.Index(i).Interface()
	}
	return items, true
}
