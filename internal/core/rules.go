package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PropertySource selects the namespace a rule property is resolved from.
type PropertySource string

const (
	SourceSystem PropertySource = "system"
	SourceCustom PropertySource = "custom"
)

// ConditionOperator is a leaf comparison operator.
type ConditionOperator string

const (
	OperatorEquals   ConditionOperator = "equals"
	OperatorContains ConditionOperator = "contains"
	OperatorIsSet    ConditionOperator = "is_set"
)

// GroupOperator combines child rule results.
type GroupOperator string

const (
	GroupAnd GroupOperator = "and"
	GroupOr  GroupOperator = "or"
)

// PropertyRef names a visitor property by source and key.
type PropertyRef struct {
	Source PropertySource `json:"source"`
	Key    string         `json:"key"`
}

// Condition is a leaf rule node comparing one visitor property to a value.
// Value is required for equals/contains and must be absent for is_set.
type Condition struct {
	Property PropertyRef       `json:"property"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// Group is a branch rule node combining child rules with and/or.
type Group struct {
	Operator   GroupOperator `json:"operator"`
	Conditions []Rule        `json:"conditions"`
}

// Rule is a node of an audience rule tree: exactly one of Condition or Group
// is set. The JSON form is discriminated by the presence of a "conditions"
// array; anything that is neither shape is rejected at parse time.
type Rule struct {
	Condition *Condition
	Group     *Group
}

var (
	ErrInvalidRule = errors.New("invalid audience rule")
)

type ruleNode struct {
	Property   *PropertyRef `json:"property,omitempty"`
	Operator   string       `json:"operator,omitempty"`
	Value      any          `json:"value,omitempty"`
	Conditions *[]Rule      `json:"conditions,omitempty"`
}

// UnmarshalJSON decodes and validates a rule node. Unknown operators, missing
// condition fields, and non-primitive condition values are rejected here so
// that evaluation never has to deal with malformed trees.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var node ruleNode
	if err := json.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if node.Conditions != nil {
		group := Group{Conditions: *node.Conditions}
		switch GroupOperator(node.Operator) {
		case GroupAnd, GroupOr:
			group.Operator = GroupOperator(node.Operator)
		default:
			return fmt.Errorf("%w: unknown group operator %q", ErrInvalidRule, node.Operator)
		}
		if node.Property != nil {
			return fmt.Errorf("%w: group node must not carry a property", ErrInvalidRule)
		}
		r.Group = &group
		r.Condition = nil
		return nil
	}

	if node.Property == nil {
		return fmt.Errorf("%w: node is neither a condition nor a group", ErrInvalidRule)
	}

	condition := Condition{
		Property: *node.Property,
		Value:    node.Value,
	}
	if err := validateCondition(&condition, node.Operator); err != nil {
		return err
	}
	r.Condition = &condition
	r.Group = nil
	return nil
}

// MarshalJSON re-emits the wire shape consumed by UnmarshalJSON.
func (r Rule) MarshalJSON() ([]byte, error) {
	switch {
	case r.Group != nil:
		return json.Marshal(struct {
			Operator   GroupOperator `json:"operator"`
			Conditions []Rule        `json:"conditions"`
		}{
			Operator:   r.Group.Operator,
			Conditions: r.Group.Conditions,
		})
	case r.Condition != nil:
		return json.Marshal(r.Condition)
	default:
		return nil, ErrInvalidRule
	}
}

func validateCondition(condition *Condition, operator string) error {
	switch ConditionOperator(operator) {
	case OperatorEquals, OperatorContains:
		if condition.Value == nil {
			return fmt.Errorf("%w: %s requires a value", ErrInvalidRule, operator)
		}
		if !primitiveValue(condition.Value) {
			return fmt.Errorf("%w: %s value must be a string, number, or boolean", ErrInvalidRule, operator)
		}
	case OperatorIsSet:
		if condition.Value != nil {
			return fmt.Errorf("%w: is_set must not carry a value", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown condition operator %q", ErrInvalidRule, operator)
	}

	switch condition.Property.Source {
	case SourceSystem, SourceCustom:
	default:
		return fmt.Errorf("%w: unknown property source %q", ErrInvalidRule, condition.Property.Source)
	}
	if condition.Property.Key == "" {
		return fmt.Errorf("%w: property key is required", ErrInvalidRule)
	}

	condition.Operator = ConditionOperator(operator)
	return nil
}

func primitiveValue(value any) bool {
	switch value.(type) {
	case string, bool,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// ParseRule decodes an audience rule tree from its authoring JSON. A nil
// result (with nil error) means no rule was configured, which callers treat
// as universally eligible.
func ParseRule(payload json.RawMessage) (*Rule, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}

	var rule Rule
	if err := json.Unmarshal(payload, &rule); err != nil {
		return nil, err
	}

	return &rule, nil
}
