package types

import (
	"fmt"
	"net/url"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// TypeToolDependency is the fixed sentinel value that marks a descriptor
// as a tool dependency definition
const TypeToolDependency = "tool_dependency"

// ToolDependency is a metadata record instructing a provisioning
// orchestrator how to locate, version, and label an external software tool.
// The record itself is inert, fetching and building the tool is the
// responsibility of the orchestrator that consumes the parsed config.
type ToolDependency struct {
	DescriptorBase `hcl:",remain"`

	// Owner is the maintainer or namespace identifier for the descriptor
	Owner string `hcl:"owner" json:"owner"`

	// Description is a one line summary of the wrapped tool
	Description string `hcl:"description,optional" json:"description,omitempty"`

	// LongDescription is an extended prose description, typically loaded
	// from a file with file() or rendered with template_file()
	LongDescription string `hcl:"long_description,optional" json:"long_description,omitempty"`

	// Categories is an ordered list of classification tags
	Categories []string `hcl:"categories,optional" json:"categories,omitempty"`

	// RemoteRepositoryURL points at the source of truth repository
	// for this descriptor
	RemoteRepositoryURL string `hcl:"remote_repository_url" json:"remote_repository_url"`

	// Packages are the versioned payloads the orchestrator installs
	Packages []Package `hcl:"package,block" json:"packages,omitempty"`
}

// Package defines a single versioned artifact of a tool dependency
type Package struct {
	Name    string `hcl:"name,label" json:"name"`
	Version string `hcl:"version" json:"version"`

	// Source is the location the orchestrator downloads the package from,
	// when empty the package is expected to be resolvable from the
	// descriptors remote repository
	Source string `hcl:"source,optional" json:"source,omitempty"`

	// Format of the downloaded artifact
	Format string `hcl:"format,optional" default:"tar.gz" json:"format,omitempty"`
}

// Validate checks the structural invariants of the record: the required
// fields are present and non empty, the type is the tool dependency
// sentinel, the repository url is syntactically valid, and all package
// versions parse as versions
func (t *ToolDependency) Validate() error {
	if t.Meta.Type != TypeToolDependency {
		return fmt.Errorf(`descriptor "%s" has type "%s", expected "%s"`, t.Meta.Name, t.Meta.Type, TypeToolDependency)
	}

	if strings.TrimSpace(t.Meta.Name) == "" {
		return fmt.Errorf("tool dependency descriptors require a name")
	}

	if strings.TrimSpace(t.Owner) == "" {
		return fmt.Errorf(`descriptor "%s" requires an owner`, t.Meta.Name)
	}

	if strings.TrimSpace(t.RemoteRepositoryURL) == "" {
		return fmt.Errorf(`descriptor "%s" requires a remote_repository_url`, t.Meta.Name)
	}

	u, err := url.Parse(t.RemoteRepositoryURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf(`descriptor "%s" has an invalid remote_repository_url "%s", urls must contain a scheme and a host`, t.Meta.Name, t.RemoteRepositoryURL)
	}

	for _, c := range t.Categories {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf(`descriptor "%s" contains an empty category`, t.Meta.Name)
		}
	}

	for _, p := range t.Packages {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf(`descriptor "%s" contains a package with no name`, t.Meta.Name)
		}

		if _, err := goversion.NewVersion(p.Version); err != nil {
			return fmt.Errorf(`package "%s" in descriptor "%s" has an invalid version "%s": %s`, p.Name, t.Meta.Name, p.Version, err)
		}
	}

	return nil
}
