package core

// System property keys resolvable on every visitor record. The JSON casing
// matches the rule documents produced by the authoring UI.
const (
	SystemKeyID             = "id"
	SystemKeyEmail          = "email"
	SystemKeyName           = "name"
	SystemKeyExternalUserID = "externalUserId"
)

// ResolveProperty maps a property reference to the visitor's concrete value.
// Absence is always represented as nil, never as an error: unknown system
// keys, empty system fields, and missing custom keys all resolve to nil so
// the evaluator's closed-world policy lives in exactly one place.
func ResolveProperty(ref PropertyRef, visitor Visitor) any {
	switch ref.Source {
	case SourceSystem:
		return resolveSystem(ref.Key, visitor)
	case SourceCustom:
		if visitor.CustomAttributes == nil {
			return nil
		}
		value, ok := visitor.CustomAttributes[ref.Key]
		if !ok {
			return nil
		}
		return value
	default:
		return nil
	}
}

func resolveSystem(key string, visitor Visitor) any {
	var value string
	switch key {
	case SystemKeyID:
		value = visitor.ID
	case SystemKeyEmail:
		value = visitor.Email
	case SystemKeyName:
		value = visitor.Name
	case SystemKeyExternalUserID:
		value = visitor.ExternalUserID
	default:
		return nil
	}

	if value == "" {
		return nil
	}
	return value
}
