package types

const TypeOutput = "output"

// Output defines a value that is exported from the config once all
// descriptors have been processed
type Output struct {
	DescriptorBase `hcl:",remain"`

	Value       string `hcl:"value,optional" json:"value,omitempty"`
	Description string `hcl:"description,optional" json:"description,omitempty"`
}
