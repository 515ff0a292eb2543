package specification

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/spine-export/pkg/mapping"
)

// ItemType - значение поля item_type
const ItemType = "Exporter"

// legacyTypes - имена типов маппингов из спецификаций с объектами и связями
var legacyTypes = map[string]mapping.Type{
	"objects":                               mapping.TypeEntities,
	"object_groups":                         mapping.TypeEntityGroups,
	"object_parameter_values":               mapping.TypeEntityParameterValues,
	"object_parameter_default_values":       mapping.TypeEntityParameterDefaultValues,
	"relationships":                         mapping.TypeEntities,
	"relationship_parameter_values":         mapping.TypeEntityParameterValues,
	"relationship_parameter_default_values": mapping.TypeEntityParameterDefaultValues,
	"relationship_object_parameter_values":  mapping.TypeEntityDimensionParameterValues,
	"relationship_object_parameter_default_values": mapping.TypeEntityDimensionParameterDefaultValues,
}

// document - форма спецификации на диске
type document struct {
	ItemType     string          `json:"item_type" yaml:"item_type"`
	OutputFormat string          `json:"output_format" yaml:"output_format"`
	Name         string          `json:"name" yaml:"name"`
	Description  string          `json:"description" yaml:"description"`
	Mappings     orderedMappings `json:"mappings" yaml:"mappings"`
}

// entryRecord - форма одного маппинга на диске
type entryRecord struct {
	Type               string           `json:"type" yaml:"type"`
	Mapping            []mapping.Record `json:"mapping" yaml:"mapping"`
	Enabled            bool             `json:"enabled" yaml:"enabled"`
	AlwaysExportHeader bool             `json:"always_export_header" yaml:"always_export_header"`
	GroupFn            string           `json:"group_fn" yaml:"group_fn"`
	UseFixedTableName  bool             `json:"use_fixed_table_name" yaml:"use_fixed_table_name"`
	HighlightDimension *int             `json:"highlight_dimension,omitempty" yaml:"highlight_dimension,omitempty"`
}

type namedRecord struct {
	name   string
	record entryRecord
}

// orderedMappings - словарь маппингов с сохранением порядка ключей
type orderedMappings []namedRecord

func (m orderedMappings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(item.record)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *orderedMappings) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("mappings must be an object")
	}
	*m = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)
		var record entryRecord
		if err := dec.Decode(&record); err != nil {
			return fmt.Errorf("mapping %q: %w", name, err)
		}
		*m = append(*m, namedRecord{name: name, record: record})
	}
	_, err = dec.Token()
	return err
}

func (m orderedMappings) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, item := range m {
		var value yaml.Node
		if err := value.Encode(item.record); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: item.name},
			&value,
		)
	}
	return node, nil
}

func (m *orderedMappings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: mappings must be a mapping", node.Line)
	}
	*m = nil
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var record entryRecord
		if err := node.Content[i+1].Decode(&record); err != nil {
			return fmt.Errorf("mapping %q: %w", name, err)
		}
		*m = append(*m, namedRecord{name: name, record: record})
	}
	return nil
}

func toRecord(e *Entry) entryRecord {
	r := entryRecord{
		Type:               string(e.Type),
		Mapping:            mapping.ToRecords(e.Root),
		Enabled:            e.Enabled,
		AlwaysExportHeader: e.AlwaysExportHeader,
		GroupFn:            e.GroupFn,
		UseFixedTableName:  e.UseFixedTableName,
	}
	if e.Type.HasHighlightDimension() {
		h := e.HighlightDimension
		r.HighlightDimension = &h
	}
	return r
}

func fromRecord(r entryRecord) (*Entry, error) {
	t, err := mapping.ParseType(r.Type)
	if err != nil {
		legacy, ok := legacyTypes[r.Type]
		if !ok {
			return nil, err
		}
		t = legacy
	}
	root, err := mapping.FromRecords(r.Mapping)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Root:               root,
		Type:               t,
		Enabled:            r.Enabled,
		AlwaysExportHeader: r.AlwaysExportHeader,
		UseFixedTableName:  r.UseFixedTableName,
		GroupFn:            r.GroupFn,
		HighlightDimension: NoHighlightDimension,
	}
	if e.GroupFn == "" {
		e.GroupFn = DefaultGroupFn
	}
	if t.HasHighlightDimension() {
		e.HighlightDimension = 0
		if r.HighlightDimension != nil {
			e.HighlightDimension = *r.HighlightDimension
		}
	}
	return e, nil
}

func (s *Specification) toDocument() document {
	doc := document{
		ItemType:     ItemType,
		OutputFormat: string(s.OutputFormat),
		Name:         s.Name,
		Description:  s.Description,
	}
	for _, name := range s.names {
		doc.Mappings = append(doc.Mappings, namedRecord{name: name, record: toRecord(s.entries[name])})
	}
	return doc
}

func fromDocument(doc document) (*Specification, error) {
	format, err := ParseOutputFormat(doc.OutputFormat)
	if err != nil {
		return nil, err
	}
	s := New(doc.Name, format)
	s.Description = doc.Description
	for _, item := range doc.Mappings {
		e, err := fromRecord(item.record)
		if err != nil {
			return nil, fmt.Errorf("mapping %q: %w", item.name, err)
		}
		if err := s.Add(item.name, e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MarshalJSON кодирует спецификацию в форму на диске
func (s *Specification) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toDocument())
}

// UnmarshalJSON декодирует спецификацию. Старые цепочки без IndexName дополняются.
func (s *Specification) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	decoded, err := fromDocument(doc)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// MarshalYAML кодирует спецификацию в YAML с сохранением порядка маппингов
func (s *Specification) MarshalYAML() (any, error) {
	return s.toDocument(), nil
}

// UnmarshalYAML декодирует спецификацию из YAML
func (s *Specification) UnmarshalYAML(node *yaml.Node) error {
	var doc document
	if err := node.Decode(&doc); err != nil {
		return err
	}
	decoded, err := fromDocument(doc)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// MarshalEntry кодирует один маппинг в канонический JSON
func MarshalEntry(e *Entry) ([]byte, error) {
	return json.Marshal(toRecord(e))
}

// UnmarshalEntry декодирует один маппинг
func UnmarshalEntry(data []byte) (*Entry, error) {
	var r entryRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return fromRecord(r)
}
