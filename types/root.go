package types

// TypeRoot is the type for the synthetic root node of the dependency graph
const TypeRoot = "root"

type Root struct {
	DescriptorBase `hcl:",remain"`
}
