package mapping

import "fmt"

// Record - сериализованная форма одного узла цепочки
type Record struct {
	Class     string   `json:"class,omitempty" yaml:"class,omitempty"`
	MapType   string   `json:"map_type,omitempty" yaml:"map_type,omitempty"` // Устаревшее имя поля class
	Position  Position `json:"position" yaml:"position"`
	Header    string   `json:"header,omitempty" yaml:"header,omitempty"`
	FilterRe  string   `json:"filter_re,omitempty" yaml:"filter_re,omitempty"`
	Ignorable bool     `json:"ignorable,omitempty" yaml:"ignorable,omitempty"`
	Value     *string  `json:"value,omitempty" yaml:"value,omitempty"`
}

// legacyClasses - имена классов из спецификаций с объектами и связями
var legacyClasses = map[string]Kind{
	"ObjectClass":                  KindEntityClass,
	"Object":                       KindEntity,
	"ObjectGroup":                  KindEntityGroup,
	"ObjectGroupObject":            KindEntityGroupEntity,
	"RelationshipClass":            KindEntityClass,
	"RelationshipClassObjectClass": KindDimension,
	"Relationship":                 KindEntity,
	"RelationshipObject":           KindElement,
}

// ToRecords сериализует цепочку в список записей
func ToRecords(root *Node) []Record {
	nodes := Flatten(root)
	records := make([]Record, len(nodes))
	for i, n := range nodes {
		records[i] = Record{
			Class:     n.Kind.Class(),
			Position:  n.Position,
			Header:    n.Header,
			FilterRe:  n.Filter,
			Ignorable: n.Ignorable,
		}
		if n.Kind == KindFixedValue {
			value := n.Value
			records[i].Value = &value
		}
	}
	return records
}

// FromRecords восстанавливает цепочку из записей.
// Цепочки старого формата без IndexName / DefaultValueIndexName дополняются скрытыми узлами.
func FromRecords(records []Record) (*Node, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("mapping has no nodes")
	}
	nodes := make([]*Node, len(records))
	for i, r := range records {
		class := r.Class
		if class == "" {
			class = r.MapType
		}
		kind, err := KindFromClass(class)
		if err != nil {
			legacy, ok := legacyClasses[class]
			if !ok {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			kind = legacy
		}
		n := &Node{
			Kind:      kind,
			Position:  r.Position,
			Header:    r.Header,
			Filter:    r.FilterRe,
			Ignorable: r.Ignorable,
		}
		if r.Value != nil {
			n.Value = *r.Value
		}
		nodes[i] = n
	}
	return UpgradeIndexNames(Unflatten(nodes)), nil
}
