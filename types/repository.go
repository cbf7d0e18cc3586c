package types

import "github.com/hashicorp/hcl/v2"

// TypeRepository is the type string for a Repository stanza
const TypeRepository = "repository"

// Repository allows descriptors to be imported from an external folder
// or a remote source such as a GitHub repository
type Repository struct {
	DescriptorBase `hcl:",remain"`

	// Source is a local path or a go-getter compatible url
	Source string `hcl:"source" json:"source"`

	// Version is an optional version constraint used when resolving the
	// repository through a shed registry
	Version string `hcl:"version,optional" json:"version,omitempty"`

	// Variables are passed to the descriptors defined in the repository,
	// the raw expression is captured and evaluated when the repository is
	// processed by the graph
	Variables hcl.Expression `hcl:"variables,optional" json:"-"`

	// SubContext stores the repositories own evaluation context so that
	// variables are not globally scoped
	SubContext *hcl.EvalContext `json:"-"`
}
