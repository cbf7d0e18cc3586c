package types

const TypeVariable = "variable"

// Variable defines an input that can be referenced from descriptor bodies,
// default values can be overridden from files, the environment, or the
// parser options
type Variable struct {
	DescriptorBase `hcl:",remain"`

	Default     interface{} `hcl:"default" json:"default"`
	Description string      `hcl:"description,optional" json:"description,omitempty"`
}
