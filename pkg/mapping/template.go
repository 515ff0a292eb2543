package mapping

import "fmt"

// Type - семейство маппинга. Определяет шаблон цепочки при создании и смене типа.
type Type string

const (
	TypeEntities                              Type = "entities"
	TypeEntityGroups                          Type = "entity_groups"
	TypeEntityParameterDefaultValues          Type = "entity_parameter_default_values"
	TypeEntityParameterValues                 Type = "entity_parameter_values"
	TypeEntityDimensionParameterDefaultValues Type = "entity_dimension_parameter_default_values"
	TypeEntityDimensionParameterValues        Type = "entity_dimension_parameter_values"
	TypeParameterValueLists                   Type = "parameter_value_lists"
	TypeAlternatives                          Type = "alternatives"
	TypeScenarios                             Type = "scenarios"
	TypeScenarioAlternatives                  Type = "scenario_alternatives"
)

// Types возвращает все типы в порядке отображения
func Types() []Type {
	return []Type{
		TypeEntities,
		TypeEntityGroups,
		TypeEntityParameterDefaultValues,
		TypeEntityParameterValues,
		TypeEntityDimensionParameterDefaultValues,
		TypeEntityDimensionParameterValues,
		TypeParameterValueLists,
		TypeAlternatives,
		TypeScenarios,
		TypeScenarioAlternatives,
	}
}

// ParseType проверяет строковое значение типа
func ParseType(s string) (Type, error) {
	for _, t := range Types() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown mapping type %q", s)
}

// HasEntityDimensions - тип поддерживает многомерные классы (Dimension / Element)
func (t Type) HasEntityDimensions() bool {
	switch t {
	case TypeEntities, TypeEntityDimensionParameterDefaultValues, TypeEntityDimensionParameterValues:
		return true
	}
	return false
}

// HasHighlightDimension - тип экспортирует параметры одного из измерений класса
func (t Type) HasHighlightDimension() bool {
	return t == TypeEntityDimensionParameterDefaultValues || t == TypeEntityDimensionParameterValues
}

// HasParameterValues - тип содержит значения параметров
func (t Type) HasParameterValues() bool {
	return t == TypeEntityParameterValues || t == TypeEntityDimensionParameterValues
}

// HasDefaultValues - тип содержит значения параметров по умолчанию
func (t Type) HasDefaultValues() bool {
	return t == TypeEntityParameterDefaultValues || t == TypeEntityDimensionParameterDefaultValues
}

// NewTemplate создает цепочку по умолчанию для типа
func NewTemplate(t Type) (*Node, error) {
	switch t {
	case TypeEntities:
		return Chain(
			New(KindEntityClass, Column(0)),
			New(KindEntity, Column(1)),
		), nil
	case TypeEntityGroups:
		return Chain(
			New(KindEntityClass, Column(0)),
			New(KindEntityGroup, Column(1)),
			New(KindEntityGroupEntity, Column(2)),
		), nil
	case TypeEntityParameterDefaultValues:
		return Chain(
			New(KindEntityClass, Column(0)),
			New(KindParameterDefinition, Column(1)),
			New(KindParameterDefaultValueType, Hidden),
			New(KindParameterDefaultValue, Column(2)),
		), nil
	case TypeEntityParameterValues:
		return Chain(
			New(KindEntityClass, Column(0)),
			New(KindParameterDefinition, Column(1)),
			New(KindEntity, Column(2)),
			New(KindAlternative, Column(3)),
			New(KindParameterValueType, Hidden),
			New(KindParameterValue, Column(4)),
		), nil
	case TypeEntityDimensionParameterDefaultValues:
		return Chain(
			New(KindEntityClass, Column(0)),
			New(KindDimension, Column(1)),
			New(KindParameterDefinition, Column(2)),
			New(KindParameterDefaultValueType, Hidden),
			New(KindParameterDefaultValue, Column(3)),
		), nil
	case TypeEntityDimensionParameterValues:
		return Chain(
			New(KindEntityClass, Column(0)),
			New(KindDimension, Column(1)),
			New(KindParameterDefinition, Column(2)),
			New(KindEntity, Column(3)),
			New(KindElement, Column(4)),
			New(KindAlternative, Column(5)),
			New(KindParameterValueType, Hidden),
			New(KindParameterValue, Column(6)),
		), nil
	case TypeParameterValueLists:
		return Chain(
			New(KindParameterValueList, Column(0)),
			New(KindParameterValueListValue, Column(1)),
		), nil
	case TypeAlternatives:
		return Chain(
			New(KindAlternative, Column(0)),
			New(KindAlternativeDescription, Column(1)),
		), nil
	case TypeScenarios:
		return Chain(
			New(KindScenario, Column(0)),
			New(KindScenarioActiveFlag, Column(1)),
			New(KindScenarioDescription, Column(2)),
		), nil
	case TypeScenarioAlternatives:
		return Chain(
			New(KindScenario, Column(0)),
			New(KindScenarioAlternative, Column(1)),
			New(KindScenarioBeforeAlternative, Column(2)),
		), nil
	default:
		return nil, fmt.Errorf("unknown mapping type %q", t)
	}
}

// Reshape строит новую цепочку для типа t, сохраняя по возможности
// фиксированное имя таблицы и размерность старой цепочки
func Reshape(old *Node, t Type) (*Node, error) {
	root, err := NewTemplate(t)
	if err != nil {
		return nil, err
	}
	if t.HasEntityDimensions() {
		if dims := Count(old, KindDimension); dims > 0 {
			if root, err = SetEntityDimensions(root, dims); err != nil {
				return nil, err
			}
		}
	}
	if t.HasParameterValues() {
		if dims := Count(old, KindParameterValueIndex); dims > 0 {
			if root, err = SetParameterDimensions(root, dims); err != nil {
				return nil, err
			}
		}
	}
	if t.HasDefaultValues() {
		if dims := Count(old, KindParameterDefaultValueIndex); dims > 0 {
			if root, err = SetParameterDefaultValueDimensions(root, dims); err != nil {
				return nil, err
			}
		}
	}
	if name, ok := FixedTableName(old); ok {
		root = WrapFixedTableName(root, name)
	}
	return root, nil
}
