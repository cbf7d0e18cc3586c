package shedconfig

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/silas/dag"
	"github.com/toolshed-labs/shedconfig/errors"
	"github.com/toolshed-labs/shedconfig/types"
)

// Config holds the parsed descriptor collection
type Config struct {
	Descriptors []types.Descriptor `json:"descriptors"`
	contexts    map[types.Descriptor]*hcl.EvalContext
	bodies      map[types.Descriptor]*hclsyntax.Body
	sync        sync.Mutex
}

// DescriptorNotFoundError is returned when a descriptor could not be found
type DescriptorNotFoundError struct {
	Name string
}

func (e DescriptorNotFoundError) Error() string {
	return fmt.Sprintf("descriptor not found: %s", e.Name)
}

// DescriptorExistsError is returned when a descriptor with the same fully
// qualified name already exists in the config
type DescriptorExistsError struct {
	Name string
}

func (e DescriptorExistsError) Error() string {
	return fmt.Sprintf("descriptor already exists: %s", e.Name)
}

// NewConfig creates an empty Config
func NewConfig() *Config {
	c := &Config{
		Descriptors: []types.Descriptor{},
		contexts:    map[types.Descriptor]*hcl.EvalContext{},
		bodies:      map[types.Descriptor]*hclsyntax.Body{},
		sync:        sync.Mutex{},
	}

	return c
}

// FindDescriptor returns the descriptor for the given fully qualified name
// name is defined with the convention: descriptor.[type].[name]
// the keyword "descriptor" is a required component of the path to allow
// easy separation from repository parts.
//
// "repository" is an optional path prefix:
// repository.[repository_name].descriptor.[type].[name]
// and is required when searching for descriptors loaded from a repository.
//
// e.g. to find the tool dependency gemini
// d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
//
// e.g. to find the tool dependency gemini loaded from the repository iuc
// d, err := c.FindDescriptor("repository.iuc.descriptor.tool_dependency.gemini")
func (c *Config) FindDescriptor(path string) (types.Descriptor, error) {
	c.sync.Lock()
	defer c.sync.Unlock()

	return c.findDescriptor(path)
}

// local version of FindDescriptor that does not lock the config
func (c *Config) findDescriptor(path string) (types.Descriptor, error) {
	fqrn, err := types.ParseFQRN(path)
	if err != nil {
		return nil, err
	}

	for _, d := range c.Descriptors {
		meta := d.Metadata()
		if meta.Repository == fqrn.Repository &&
			meta.Type == fqrn.Type &&
			meta.Name == fqrn.Descriptor {
			return d, nil
		}
	}

	return nil, DescriptorNotFoundError{fqrn.StringWithoutAttribute()}
}

// FindRelativeDescriptor returns the descriptor for the given path scoped
// to a parent repository. References inside a repository are written with
// no knowledge of the repository they are loaded into, the parent is
// prefixed to resolve them.
func (c *Config) FindRelativeDescriptor(path string, parentRepository string) (types.Descriptor, error) {
	c.sync.Lock()
	defer c.sync.Unlock()

	fqrn, err := types.ParseFQRN(path)
	if err != nil {
		return nil, err
	}

	if parentRepository != "" {
		repo := fmt.Sprintf("%s.%s", parentRepository, fqrn.Repository)

		// fqrn.Repository could be empty
		repo = strings.Trim(repo, ".")
		fqrn.Repository = repo
	}

	d, err := c.findDescriptor(fqrn.String())
	if err != nil {
		return nil, err
	}

	return d, nil
}

// FindDescriptorsByType returns all descriptors of the given type
func (c *Config) FindDescriptorsByType(t string) ([]types.Descriptor, error) {
	c.sync.Lock()
	defer c.sync.Unlock()

	found := []types.Descriptor{}

	for _, d := range c.Descriptors {
		if d.Metadata().Type == t {
			found = append(found, d)
		}
	}

	if len(found) > 0 {
		return found, nil
	}

	return nil, DescriptorNotFoundError{t}
}

// FindRepositoryDescriptors returns the descriptors loaded from the given
// repository reference.
// if includeSubRepositories is true then descriptors from any nested
// repositories are also returned
func (c *Config) FindRepositoryDescriptors(repository string, includeSubRepositories bool) ([]types.Descriptor, error) {
	c.sync.Lock()
	defer c.sync.Unlock()

	fqrn, err := types.ParseFQRN(repository)
	if err != nil {
		return nil, err
	}

	if fqrn.Type != types.TypeRepository {
		return nil, fmt.Errorf("%s is not a repository reference", repository)
	}

	repositoryString := fmt.Sprintf("%s.%s", fqrn.Repository, fqrn.Descriptor)
	repositoryString = strings.TrimPrefix(repositoryString, ".")

	found := []types.Descriptor{}

	for _, d := range c.Descriptors {
		meta := d.Metadata()

		match := false
		if includeSubRepositories && strings.HasPrefix(meta.Repository, repositoryString) {
			match = true
		}

		if !includeSubRepositories && meta.Repository == repositoryString {
			match = true
		}

		if match {
			found = append(found, d)
		}
	}

	if len(found) > 0 {
		return found, nil
	}

	return nil, DescriptorNotFoundError{repository}
}

// DescriptorCount returns the number of descriptors in the config
func (c *Config) DescriptorCount() int {
	return len(c.Descriptors)
}

// AppendDescriptorsFromConfig adds the descriptors in the given config to
// this config. If a descriptor already exists a DescriptorExistsError
// is returned
func (c *Config) AppendDescriptorsFromConfig(other *Config) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	for _, d := range other.Descriptors {
		fqrn := types.FQRNFromDescriptor(d)
		fqrnString := fqrn.String()

		// does the descriptor already exist?
		if _, err := c.findDescriptor(fqrnString); err == nil {
			return DescriptorExistsError{Name: fqrnString}
		}

		// we need to add the context and the body from the other config
		// so we can use them when processing
		if err := c.addDescriptor(d, other.contexts[d], other.bodies[d]); err != nil {
			return err
		}
	}

	return nil
}

// AppendDescriptor adds a given descriptor to the collection,
// if the descriptor already exists an error is returned
func (c *Config) AppendDescriptor(d types.Descriptor) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	return c.addDescriptor(d, nil, nil)
}

// RemoveDescriptor removes the given descriptor from the collection
func (c *Config) RemoveDescriptor(rd types.Descriptor) error {
	c.sync.Lock()
	defer c.sync.Unlock()

	pos := -1
	rdMeta := rd.Metadata()
	for i, d := range c.Descriptors {
		meta := d.Metadata()
		if rdMeta.Name == meta.Name &&
			rdMeta.Type == meta.Type &&
			rdMeta.Repository == meta.Repository {
			pos = i
			break
		}
	}

	// found the descriptor, remove from the collection preserving order
	if pos > -1 {
		c.Descriptors = append(c.Descriptors[:pos], c.Descriptors[pos+1:]...)

		// clean up the context and body
		delete(c.contexts, rd)
		delete(c.bodies, rd)
		return nil
	}

	return DescriptorNotFoundError{rdMeta.Name}
}

// WalkCallback is called with the descriptor when the graph processes that
// particular node
type WalkCallback func(d types.Descriptor) error

// Walk traverses the dependency graph of the parsed descriptors and
// executes the provided callback for every descriptor, dependencies are
// always visited before their dependents.
//
// Any error returned from the callback halts execution of any other
// callback in the graph.
//
// Specifying the reverse option to 'true' causes the graph to be traversed
// in reverse order.
func (c *Config) Walk(wf WalkCallback, reverse bool) error {
	// We need to ensure that the walker does not execute the callback when
	// any other callback returns an error.
	// Unfortunately returning an error from the walk func does not stop
	// the walk
	hasError := atomic.Bool{}

	ce := errors.NewConfigError()

	errs := c.walk(
		func(v dag.Vertex) (diags dag.Diagnostics) {
			d, ok := v.(types.Descriptor)
			if !ok {
				return nil
			}

			// if this is the root node, a repository, or disabled, skip
			meta := d.Metadata()
			if meta.Type == types.TypeRoot || meta.Type == types.TypeRepository || d.GetDisabled() {
				return nil
			}

			// call the callback only if a previous error has not occurred
			if hasError.Load() {
				return nil
			}

			err := wf(d)
			if err != nil {
				// set the global error mutex to stop further processing
				hasError.Store(true)

				return diags.Append(err)
			}

			return nil
		},
		reverse,
	)

	for _, e := range errs {
		ce.AppendProcessError(e)
	}

	if ce.ContainsErrors() {
		return ce
	}

	return nil
}

// process builds the dependency graph and executes the given dag walk
// function for every node. Until process is called the HCL bodies have not
// been decoded into the descriptor structs, decoding happens in strict
// dependency order as some attributes reference values from other
// descriptors.
func (c *Config) process(wf dag.WalkFunc, reverse bool) error {
	ce := errors.NewConfigError()

	for _, e := range c.walk(wf, reverse) {
		ce.AppendProcessError(e)
	}

	if ce.ContainsErrors() {
		return ce
	}

	return nil
}

func (c *Config) walk(wf dag.WalkFunc, reverse bool) []error {
	// build the graph
	d, err := buildDAG(c)
	if err != nil {
		return []error{err}
	}

	// reduce the graph nodes to unique instances
	d.TransitiveReduction()

	// validate the dependency graph is ok
	err = d.Validate()
	if err != nil {
		return []error{fmt.Errorf("unable to validate dependency graph: %w", err)}
	}

	// define the walker callback that will be called for every node in the graph
	w := dag.Walker{}
	w.Callback = wf
	w.Reverse = reverse

	// update the dag and process the nodes
	log.SetOutput(io.Discard)

	errs := []error{}
	w.Update(d)
	diags := w.Wait()
	if diags.HasErrors() {
		errs = append(errs, diags.Err().(errwrap.Wrapper).WrappedErrors()...)

		return errs
	}

	return nil
}

func (c *Config) addDescriptor(d types.Descriptor, ctx *hcl.EvalContext, b *hclsyntax.Body) error {
	meta := d.Metadata()

	fqrn := &types.FQRN{
		Repository: meta.Repository,
		Descriptor: meta.Name,
		Type:       meta.Type,
	}

	// set the ID
	meta.ID = fqrn.String()

	rf, findErr := c.findDescriptor(fqrn.String())
	if findErr == nil && rf != nil {
		return DescriptorExistsError{meta.Name}
	}

	c.Descriptors = append(c.Descriptors, d)
	c.contexts[d] = ctx
	c.bodies[d] = b

	return nil
}

func (c *Config) getContext(d types.Descriptor) (*hcl.EvalContext, error) {
	if ctx, ok := c.contexts[d]; ok && ctx != nil {
		return ctx, nil
	}

	return nil, DescriptorNotFoundError{d.Metadata().ID}
}

func (c *Config) getBody(d types.Descriptor) (*hclsyntax.Body, error) {
	if b, ok := c.bodies[d]; ok && b != nil {
		return b, nil
	}

	return nil, DescriptorNotFoundError{d.Metadata().ID}
}
