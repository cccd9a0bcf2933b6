package core

import "fmt"

// ParameterType tags the value kind of a model card parameter.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamSelect  ParameterType = "select"
)

// Parameter is a single tunable on a model card (temperature, max_tokens, ...).
type Parameter struct {
	Name    string        `json:"name"`
	Type    ParameterType `json:"type"`
	Value   any           `json:"value"`
	Options []string      `json:"options,omitempty"` // only for ParamSelect
}

// Validate checks that the parameter value matches its declared type.
func (p Parameter) Validate() error {
	switch p.Type {
	case ParamString:
		if _, ok := p.Value.(string); !ok {
			return ErrValidation("PARAM_TYPE_MISMATCH", fmt.Sprintf("parameter %s: expected string value", p.Name))
		}
	case ParamNumber:
		switch p.Value.(type) {
		case float64, float32, int, int64:
		default:
			return ErrValidation("PARAM_TYPE_MISMATCH", fmt.Sprintf("parameter %s: expected numeric value", p.Name))
		}
	case ParamBoolean:
		if _, ok := p.Value.(bool); !ok {
			return ErrValidation("PARAM_TYPE_MISMATCH", fmt.Sprintf("parameter %s: expected boolean value", p.Name))
		}
	case ParamSelect:
		s, ok := p.Value.(string)
		if !ok {
			return ErrValidation("PARAM_TYPE_MISMATCH", fmt.Sprintf("parameter %s: expected string value", p.Name))
		}
		for _, opt := range p.Options {
			if opt == s {
				return nil
			}
		}
		return ErrValidation("PARAM_OPTION_UNKNOWN", fmt.Sprintf("parameter %s: %q is not an allowed option", p.Name, s))
	default:
		return ErrValidation("PARAM_TYPE_UNKNOWN", fmt.Sprintf("parameter %s: unknown type %q", p.Name, p.Type))
	}
	return nil
}

// Capabilities describes what a model card's underlying model supports.
type Capabilities struct {
	Images bool `json:"images"`
	Audio  bool `json:"audio"`
	Files  bool `json:"files"`
	Tools  bool `json:"tools"`
}

// ModelCard is a named LLM configuration. Workflows hold snapshots of model
// cards, not references; editing the global collection does not change a
// workflow's copy.
type ModelCard struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	SystemPrompt  string       `json:"system_prompt"`
	Parameters    []Parameter  `json:"parameters,omitempty"`
	Provider      string       `json:"provider"`
	Model         string       `json:"model"`
	Capabilities  Capabilities `json:"capabilities"`
	ToolServerIDs []string     `json:"tool_server_ids,omitempty"`
}

// Clone returns a deep copy of the model card.
func (c ModelCard) Clone() ModelCard {
	out := c
	out.Parameters = make([]Parameter, len(c.Parameters))
	for i, p := range c.Parameters {
		cp := p
		cp.Options = append([]string(nil), p.Options...)
		out.Parameters[i] = cp
	}
	out.ToolServerIDs = append([]string(nil), c.ToolServerIDs...)
	return out
}

// FlattenParameters reduces the parameter list to a flat name→value map as
// sent to providers.
func (c ModelCard) FlattenParameters() map[string]any {
	params := make(map[string]any, len(c.Parameters))
	for _, p := range c.Parameters {
		params[p.Name] = p.Value
	}
	return params
}

// Validate checks model card invariants.
func (c ModelCard) Validate() error {
	if c.ID == "" {
		return ErrValidation("CARD_ID_REQUIRED", "model card ID cannot be empty")
	}
	if c.Name == "" {
		return ErrValidation("CARD_NAME_REQUIRED", "model card name cannot be empty")
	}
	for _, p := range c.Parameters {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
