package types

// Parsable defines an optional interface that allows a descriptor to be
// modified directly after it has been loaded from a file
//
// Parse is called sequentially for each descriptor as it is loaded from the
// config file. This occurs before the graph of dependent descriptors has been
// built, so properties referencing other descriptors are not yet resolved.
type Parsable interface {
	// Parse is called when the descriptor is created from a file.
	//
	// Note: it is not possible to set descriptor properties from Parse
	// as all properties are overwritten when the descriptor is processed
	// by the dag and any dependencies are resolved.
	//
	// DescriptorBase can be set by this method as this is not overridden
	// when processed.
	Parse(config Findable) error
}

// Processable defines an optional interface that allows a descriptor to define
// a callback that is executed when the descriptor is processed by the graph.
//
// Unlike Parsable, Process for a descriptor is called in strict order based
// upon its dependency to other descriptors. You can set calculated fields in
// Process and this information will be available to dependent descriptors.
type Processable interface {
	// Process is called by the parser when the graph of descriptors is walked.
	//
	// Returning an error from Process stops the processing of other
	// descriptors and terminates all parsing.
	Process() error
}

// Validatable defines an optional interface allowing a descriptor to check
// its own structural invariants once all attributes have been decoded.
type Validatable interface {
	// Validate is called by the parser when the graph of descriptors is
	// walked, after the body for the descriptor has been fully decoded.
	//
	// Returning an error from Validate stops the processing of other
	// descriptors and terminates all parsing.
	Validate() error
}

// Findable is implemented by collections that can locate descriptors by
// their fully qualified name
type Findable interface {
	FindDescriptor(path string) (Descriptor, error)
	FindDescriptorsByType(t string) ([]Descriptor, error)
}

// Descriptor is the interface that all descriptor records implement
type Descriptor interface {
	// return the descriptor Metadata
	Metadata() *Meta
	GetDisabled() bool
	SetDisabled(bool)
	GetDependencies() []string
	SetDependencies([]string)
	AddDependency(string)
}

type Meta struct {
	// ID is the unique id for the descriptor
	// this follows the convention descriptor.[type].[name] and is prefixed
	// with repository.[repository] when loaded from a repository
	ID string `hcl:"id,optional" json:"id"`

	// Name is the name of the descriptor
	// this is an internal property that is set from the stanza label
	Name string `hcl:"name,optional" json:"name"`

	// Type is the type of the descriptor, i.e. "tool_dependency"
	// this is an internal property that can not be set with hcl
	Type string `hcl:"type,optional" json:"type"`

	// Repository is the name of the repository if the descriptor has been
	// loaded from a repository stanza
	// this is an internal property that can not be set with hcl
	Repository string `hcl:"repository,optional" json:"repository,omitempty"`

	// File is the absolute path of the file where the descriptor is defined
	// this is an internal property that can not be set with hcl
	File string `hcl:"file,optional" json:"file"`

	// Line is the starting line number where the descriptor is located in
	// the file from where it was originally parsed
	Line int `hcl:"line,optional" json:"line"`

	// Column is the starting column number where the descriptor is located
	// in the file from where it was originally parsed
	Column int `hcl:"column,optional" json:"column"`

	// Checksum holds the hashes of the descriptor
	Checksum Checksum `hcl:"checksum,optional" json:"checksum"`

	// Properties holds a collection that can be used to store adhoc data
	Properties map[string]interface{} `json:"properties,omitempty"`

	// Linked descriptors which must be processed before this descriptor,
	// calculated from interpolated references in the body
	// this is an internal property that can not be set with hcl
	Links []string `json:"links,omitempty"`
}

// DescriptorBase is the embedded type for any descriptor records,
// it defines common meta data that all descriptors share
type DescriptorBase struct {
	// DependsOn is a user configurable list of dependencies for this
	// descriptor
	DependsOn []string `hcl:"depends_on,optional" json:"depends_on,omitempty"`

	// Disabled determines if a descriptor is disabled and should be
	// ignored when the graph is processed
	Disabled bool `hcl:"disabled,optional" json:"disabled,omitempty"`

	Meta Meta `hcl:"meta,optional" json:"meta,omitempty"`
}

type Checksum struct {
	// Parsed is the checksum of the descriptor properties after the
	// descriptor has been read and the Parse method has been called.
	Parsed string `hcl:"parsed,optional" json:"parsed,omitempty"`
	// Processed is the checksum of the descriptor after the Process method
	// and any parser callbacks have been called. The checksum is evaluated
	// in the graph so any dependent properties are included.
	Processed string `hcl:"processed,optional" json:"processed,omitempty"`
}

// Metadata ensures any struct that embeds DescriptorBase conforms
// to the Descriptor interface
func (d *DescriptorBase) Metadata() *Meta {
	return &d.Meta
}

func (d *DescriptorBase) GetDisabled() bool {
	return d.Disabled
}

func (d *DescriptorBase) SetDisabled(v bool) {
	d.Disabled = v
}

func (d *DescriptorBase) GetDependencies() []string {
	return d.DependsOn
}

func (d *DescriptorBase) SetDependencies(v []string) {
	d.DependsOn = v
}

func (d *DescriptorBase) AddDependency(v string) {
	d.DependsOn = appendIfNotContains(d.DependsOn, v)
}

func appendIfNotContains(list []string, value string) []string {
	for _, item := range list {
		if value == item {
			return list
		}
	}

	return append(list, value)
}
