package content

import (
	"encoding/json"
	"fmt"
)

const (
	LogicTypeGroup = "group"
	LogicTypeRule  = "rule"

	LogicAnd = "AND"
	LogicOr  = "OR"

	ValueModeText     = "text"
	ValueModeVariable = "variable"
)

// noValueOperators compare a variable against nothing.
var noValueOperators = map[string]bool{
	"empty":     true,
	"not_empty": true,
	"is_true":   true,
	"is_false":  true,
}

// valueOperators need a right-hand side.
var valueOperators = map[string]bool{
	"eq":           true,
	"neq":          true,
	"gt":           true,
	"gte":          true,
	"lt":           true,
	"lte":          true,
	"contains":     true,
	"not_contains": true,
	"starts_with":  true,
	"ends_with":    true,
	"before":       true,
	"after":        true,
}

// IsNoValueOperator reports whether op takes no comparison value.
func IsNoValueOperator(op string) bool { return noValueOperators[op] }

// IsValueOperator reports whether op requires a comparison value.
func IsValueOperator(op string) bool { return valueOperators[op] }

// LogicItem is a closed union: *LogicGroup, *LogicRule or *InvalidLogicItem.
// Use MatchLogic to branch on it.
type LogicItem interface {
	LogicType() string
	sealedLogic()
}

// LogicGroup combines its children with AND or OR.
type LogicGroup struct {
	Type     string     `json:"type"`
	Logic    string     `json:"logic"`
	Children LogicItems `json:"children"`
}

// LogicRule compares a variable against a value.
type LogicRule struct {
	Type       string     `json:"type"`
	VariableID string     `json:"variableId"`
	Operator   string     `json:"operator"`
	Value      *RuleValue `json:"value,omitempty"`
}

// RuleValue is either literal text or a reference to another variable.
type RuleValue struct {
	Mode  string `json:"mode"`
	Value string `json:"value"`
}

// InvalidLogicItem keeps an item whose type is neither group nor rule so that
// drafts still decode and the validator can report it.
type InvalidLogicItem struct {
	Type string
	Raw  json.RawMessage
}

func (g *LogicGroup) LogicType() string       { return LogicTypeGroup }
func (r *LogicRule) LogicType() string        { return LogicTypeRule }
func (i *InvalidLogicItem) LogicType() string { return i.Type }

func (*LogicGroup) sealedLogic()       {}
func (*LogicRule) sealedLogic()        {}
func (*InvalidLogicItem) sealedLogic() {}

func (i *InvalidLogicItem) MarshalJSON() ([]byte, error) {
	if len(i.Raw) == 0 {
		return []byte("null"), nil
	}
	return i.Raw, nil
}

// HasValue reports whether the rule carries a non-empty comparison value.
func (r *LogicRule) HasValue() bool {
	return r.Value != nil && r.Value.Value != ""
}

// MatchLogic dispatches on the concrete logic item kind.
func MatchLogic(
	item LogicItem,
	group func(*LogicGroup),
	rule func(*LogicRule),
	invalid func(*InvalidLogicItem),
) {
	switch it := item.(type) {
	case *LogicGroup:
		group(it)
	case *LogicRule:
		rule(it)
	case *InvalidLogicItem:
		invalid(it)
	default:
		panic(fmt.Sprintf("content: unhandled logic item %T", item))
	}
}

// LogicItems decodes each element into its concrete logic item kind.
type LogicItems []LogicItem

func (l *LogicItems) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	items := make(LogicItems, 0, len(raws))
	for i, raw := range raws {
		item, err := decodeLogicItem(raw)
		if err != nil {
			return fmt.Errorf("children[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	*l = items

	return nil
}

func decodeLogicItem(raw json.RawMessage) (LogicItem, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case LogicTypeGroup:
		group := &LogicGroup{}
		if err := json.Unmarshal(raw, group); err != nil {
			return nil, err
		}
		return group, nil
	case LogicTypeRule:
		rule := &LogicRule{}
		if err := json.Unmarshal(raw, rule); err != nil {
			return nil, err
		}
		return rule, nil
	default:
		return &InvalidLogicItem{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
