package mapping

import "fmt"

// Kind - тип узла маппинга. Определяет, какие значения узел извлекает из источника.
type Kind uint8

const (
	KindFixedValue Kind = iota
	KindEntityClass
	KindDimension
	KindEntity
	KindElement
	KindEntityGroup
	KindEntityGroupEntity
	KindParameterDefinition
	KindParameterDefaultValueType
	KindDefaultValueIndexName
	KindParameterDefaultValueIndex
	KindParameterDefaultValue
	KindExpandedDefaultValue
	KindParameterValueList
	KindParameterValueListValue
	KindAlternative
	KindAlternativeDescription
	KindScenario
	KindScenarioDescription
	KindScenarioActiveFlag
	KindScenarioAlternative
	KindScenarioBeforeAlternative
	KindParameterValue
	KindParameterValueType
	KindIndexName
	KindParameterValueIndex
	KindExpandedValue

	kindCount
)

// kindInfo - имя класса для сериализации и метка для редактора
var kindInfo = [kindCount]struct {
	class string
	label string
}{
	KindFixedValue:                 {"FixedValue", "fixed value"},
	KindEntityClass:                {"EntityClass", "entity class"},
	KindDimension:                  {"Dimension", "dimension"},
	KindEntity:                     {"Entity", "entity"},
	KindElement:                    {"Element", "element"},
	KindEntityGroup:                {"EntityGroup", "group"},
	KindEntityGroupEntity:          {"EntityGroupEntity", "member"},
	KindParameterDefinition:        {"ParameterDefinition", "parameter"},
	KindParameterDefaultValueType:  {"ParameterDefaultValueType", "default value type"},
	KindDefaultValueIndexName:      {"DefaultValueIndexName", "default value index name"},
	KindParameterDefaultValueIndex: {"ParameterDefaultValueIndex", "default value index"},
	KindParameterDefaultValue:      {"ParameterDefaultValue", "default value"},
	KindExpandedDefaultValue:       {"ExpandedDefaultValue", "default value"},
	KindParameterValueList:         {"ParameterValueList", "value list"},
	KindParameterValueListValue:    {"ParameterValueListValue", "value list value"},
	KindAlternative:                {"Alternative", "alternative"},
	KindAlternativeDescription:     {"AlternativeDescription", "alternative description"},
	KindScenario:                   {"Scenario", "scenario"},
	KindScenarioDescription:        {"ScenarioDescription", "scenario description"},
	KindScenarioActiveFlag:         {"ScenarioActiveFlag", "scenario active flag"},
	KindScenarioAlternative:        {"ScenarioAlternative", "alternative"},
	KindScenarioBeforeAlternative:  {"ScenarioBeforeAlternative", "before alternative"},
	KindParameterValue:             {"ParameterValue", "value"},
	KindParameterValueType:         {"ParameterValueType", "value type"},
	KindIndexName:                  {"IndexName", "index name"},
	KindParameterValueIndex:        {"ParameterValueIndex", "parameter index"},
	KindExpandedValue:              {"ExpandedValue", "value"},
}

// kindByClass - обратный индекс имени класса
var kindByClass = func() map[string]Kind {
	m := make(map[string]Kind, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		m[kindInfo[k].class] = k
	}
	return m
}()

// Class возвращает имя класса для сериализации
func (k Kind) Class() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindInfo[k].class
}

// Label возвращает метку строки для редактора
func (k Kind) Label() string {
	if k >= kindCount {
		return k.Class()
	}
	return kindInfo[k].label
}

// String реализует fmt.Stringer
func (k Kind) String() string { return k.Class() }

// KindFromClass находит тип узла по имени класса
func KindFromClass(class string) (Kind, error) {
	k, ok := kindByClass[class]
	if !ok {
		return 0, fmt.Errorf("unknown mapping class %q", class)
	}
	return k, nil
}

// IsIndexed - узел нумеруется по порядку среди узлов того же типа
// (dimension 1, dimension 2, ...)
func (k Kind) IsIndexed() bool {
	switch k {
	case KindDimension, KindElement, KindIndexName, KindParameterValueIndex,
		KindDefaultValueIndexName, KindParameterDefaultValueIndex:
		return true
	}
	return false
}

// IsEntityLike - узлы, значения которых являются именами классов/сущностей.
// Такие узлы не могут иметь позицию Header.
func (k Kind) IsEntityLike() bool {
	switch k {
	case KindFixedValue, KindEntityClass, KindDimension, KindEntity, KindElement,
		KindEntityGroup, KindEntityGroupEntity:
		return true
	}
	return false
}

// IsValueLeaf - узлы, которые выдают значение параметра
func (k Kind) IsValueLeaf() bool {
	switch k {
	case KindParameterValue, KindExpandedValue, KindParameterDefaultValue, KindExpandedDefaultValue:
		return true
	}
	return false
}
