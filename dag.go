package shedconfig

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/silas/dag"
	"github.com/toolshed-labs/shedconfig/convert"
	"github.com/toolshed-labs/shedconfig/errors"
	"github.com/toolshed-labs/shedconfig/types"
)

// buildDAG creates a directed acyclic graph from the descriptors in the
// config, any explicit depends_on references and any implicit links
// extracted from interpolated expressions become graph edges
func buildDAG(c *Config) (*dag.AcyclicGraph, error) {
	graph := &dag.AcyclicGraph{}

	// add a root node for the graph
	root, _ := types.DefaultTypes().CreateDescriptor(types.TypeRoot, "root")
	graph.Add(root)

	// loop over all descriptors and add them to the graph
	for _, d := range c.Descriptors {
		// ignore variables
		if d.Metadata().Type != types.TypeVariable {
			graph.Add(d)
		}
	}

	// add the dependencies for all descriptors
	for _, d := range c.Descriptors {
		hasDeps := false

		// do nothing with variables
		if d.Metadata().Type == types.TypeVariable {
			continue
		}

		// use a map to keep a unique list
		dependencies := map[types.Descriptor]bool{}

		// merge the links calculated from interpolation into the
		// explicit dependencies
		for _, l := range d.Metadata().Links {
			d.AddDependency(l)
		}

		for _, dep := range d.GetDependencies() {
			fqrn, err := types.ParseFQRN(dep)
			if err != nil {
				return nil, createParserError(d, fmt.Sprintf("invalid dependency '%s': %s", dep, err))
			}

			// when the dependency is a repository, depend on all the
			// descriptors in that repository
			if fqrn.Type == types.TypeRepository {
				// references inside a repository have no knowledge of their
				// parent, prefix the parent repositories so the reference
				// resolves from the root config
				relFQRN := fqrn.AppendParentRepository(d.Metadata().Repository)

				// it is possible that the repository contains only
				// disabled descriptors, ignore the error
				deps, _ := c.FindRepositoryDescriptors(relFQRN.String(), true)

				for _, dd := range deps {
					dependencies[dd] = true
				}
			}

			// when the dependency is a descriptor, depend on the descriptor
			if fqrn.Type != types.TypeRepository {
				relFQRN := fqrn.AppendParentRepository(d.Metadata().Repository)

				// the dependency may reference a disabled descriptor,
				// ignore the error
				dd, _ := c.FindDescriptor(relFQRN.String())
				if dd != nil {
					dependencies[dd] = true
				}
			}
		}

		// if this descriptor was loaded from a repository make it depend
		// on that repository
		if d.Metadata().Repository != "" {
			fqrnString := fmt.Sprintf("repository.%s", d.Metadata().Repository)

			rd, err := c.FindDescriptor(fqrnString)
			if err != nil {
				return nil, createParserError(d,
					fmt.Sprintf("unable to find parent repository: '%s', error: %s", fqrnString, err))
			}

			hasDeps = true
			dependencies[rd] = true
		}

		for dd := range dependencies {
			hasDeps = true
			graph.Connect(dag.BasicEdge(dd, d))
		}

		// if there are no dependencies, connect to the root node
		if !hasDeps {
			graph.Connect(dag.BasicEdge(root, d))
		}
	}

	return graph, nil
}

// createCallback creates the internal callback that is called when a node
// in the dag is visited. The callback decodes the descriptor body now that
// the values of any dependencies are known, validates it, and calls the
// user defined callback so that external work can be performed.
func createCallback(c *Config, wf WalkCallback) func(v dag.Vertex) (diags dag.Diagnostics) {
	return func(v dag.Vertex) (diags dag.Diagnostics) {
		d, ok := v.(types.Descriptor)
		// not a descriptor, skip. this should never happen
		if !ok {
			panic("an item has been added to the graph that is not a descriptor")
		}

		// nothing to do for the synthetic root node
		if d.Metadata().Type == types.TypeRoot {
			return nil
		}

		bdy, err := c.getBody(d)
		if err != nil {
			return diags.Append(createParserError(d, fmt.Sprintf(`no body found for descriptor "%s"`, d.Metadata().ID)))
		}

		ctx, err := c.getContext(d)
		if err != nil {
			return diags.Append(createParserError(d, fmt.Sprintf(`no context found for descriptor "%s"`, d.Metadata().ID)))
		}

		// validate the descriptor links
		if len(d.Metadata().Links) > 0 {
			err := validateLinkedDescriptors(c, d, d.Metadata().Links)
			if err != nil {
				return diags.Append(createParserError(
					d,
					fmt.Sprintf(`descriptor contains invalid interpolated values: %s`, err),
				))
			}
		}

		// if the descriptor is disabled we need to skip setting disabled
		// again, otherwise we could revert the disabled state set by a
		// repository
		if d.GetDisabled() {
			return nil
		}

		// the disabled attribute might be an interpolated expression
		// referencing another descriptor, evaluate it now the
		// dependencies have been processed
		if attr, ok := bdy.Attributes["disabled"]; ok {
			links, err := processExpr(attr.Expr)
			if err != nil {
				return diags.Append(createParserError(
					d,
					fmt.Sprintf(`unable to process disabled expression: %s`, err)),
				)
			}

			if len(links) > 0 {
				withContextLock(ctx, func() {
					err := setContextVariablesFromList(c, d, links, ctx)
					if err != nil {
						diags = diags.Append(err)
					}
				})

				if diags.HasErrors() {
					return diags
				}

				var isDisabled bool
				expdiags := hcl.Diagnostics{}
				withContextLock(ctx, func() {
					expdiags = gohcl.DecodeExpression(attr.Expr, ctx, &isDisabled)
				})

				if expdiags.HasErrors() {
					return diags.Append(createParserError(
						d,
						fmt.Sprintf(`unable to process disabled expression: %s`, expdiags.Error())),
					)
				}

				d.SetDisabled(isDisabled)
				if isDisabled {
					return nil
				}
			}
		}

		// set the context variables from the linked descriptors
		withContextLock(ctx, func() {
			err := setContextVariablesFromList(c, d, d.Metadata().Links, ctx)
			if err != nil {
				diags = diags.Append(err)
			}
		})

		if diags.HasErrors() {
			return diags
		}

		// if there are defaults defined on the descriptor set them
		defaults.Set(d)

		// decode the body now we have the context from the linked
		// descriptors
		decodeDiags := hcl.Diagnostics{}
		withContextLock(ctx, func() {
			decodeDiags = gohcl.DecodeBody(bdy, ctx, d)
		})

		if decodeDiags.HasErrors() {
			// this is initially a warning as it is possible that the body
			// contains interpolation that is not yet resolved, hard syntax
			// errors are upgraded below
			parserErr := createParserWarning(d, fmt.Sprintf(`unable to decode body: %s`, decodeDiags.Error()))

			for _, e := range decodeDiags.Errs() {
				err, ok := e.(*hcl.Diagnostic)
				if !ok {
					continue
				}

				if slices.Contains(fatalDecodeSummaries, err.Summary) {
					parserErr.Level = errors.ParserErrorLevelError
					return diags.Append(parserErr)
				}
			}
		}

		// if the type is a repository we need to propagate state to the
		// descriptors it contains
		if d.Metadata().Type == types.TypeRepository {
			// if the repository is disabled all of its descriptors are
			// disabled too
			if d.GetDisabled() {
				dr, err := c.FindRepositoryDescriptors(d.Metadata().ID, true)
				if err != nil {
					return diags.Append(createParserError(
						d,
						fmt.Sprintf(`unable to find descriptors for disabled repository "%s": %s`, d.Metadata().ID, err),
					))
				}

				for _, dd := range dr {
					dd.SetDisabled(true)
				}

				return nil
			}

			// set the repository variables on the sub context so they are
			// available to the descriptors in the repository
			repo := d.(*types.Repository)

			withContextLock(ctx, func() {
				if repo.Variables != nil {
					val, _ := repo.Variables.Value(ctx)
					if !val.IsNull() && val.Type().IsObjectType() {
						for k, v := range val.AsValueMap() {
							setContextVariable(repo.SubContext, k, v)
						}
					}
				}
			})

			return nil
		}

		// check the structural invariants of the descriptor now the body
		// has been decoded
		if vd, ok := d.(types.Validatable); ok {
			if err := vd.Validate(); err != nil {
				return diags.Append(createParserError(d, err.Error()))
			}
		}

		// call the descriptors process method, process is called in strict
		// dependency order so calculated fields are visible to dependents
		if pd, ok := d.(types.Processable); ok {
			if err := pd.Process(); err != nil {
				return diags.Append(createParserError(
					d,
					fmt.Sprintf(`error processing descriptor "%s": %s`, d.Metadata().ID, err),
				))
			}
		}

		// the descriptor is final, compute the processed checksum
		if data, err := json.Marshal(d); err == nil {
			d.Metadata().Checksum.Processed = HashString(string(data))
		}

		// call the user defined callback
		if wf != nil {
			err := wf(d)
			if err != nil {
				return diags.Append(createParserError(
					d,
					fmt.Sprintf(`error in callback for descriptor "%s": %s`, d.Metadata().ID, err),
				))
			}
		}

		return nil
	}
}

// fatalDecodeSummaries are the HCL diagnostic summaries that can not be
// caused by unresolved interpolation and always fail the parse
var fatalDecodeSummaries = []string{
	"Error in function call",
	"Call to unknown function",
	"Unknown variable",
	"Invalid expanding argument value",
	"Not enough function arguments",
	"Too many function arguments",
	"Invalid function argument",
	"Inconsistent conditional result types",
	"Null condition",
	"Incorrect condition type",
	"Null value as key",
	"Incorrect key type",
	"Ambiguous attribute key",
	"Iteration over null value",
	"Iteration over non-iterable value",
	"Condition is null",
	"Invalid 'for' condition",
	"Invalid object key",
	"Duplicate object key",
	"Splat of null value",
	"Invalid nested splat expressions",
	"Function calls not allowed",
	"Unsupported argument",
	"Missing required argument",
}

// setContextVariablesFromList sets the context variables for a list of
// descriptor links
//
// for example: given ["descriptor.tool_dependency.gemini.owner"]
// the context variable descriptor.tool_dependency.gemini is set to the
// cty representation of the gemini descriptor
func setContextVariablesFromList(c *Config, d types.Descriptor, values []string, ctx *hcl.EvalContext) *errors.ParserError {
	// all linked values have been processed before this descriptor as the
	// graph handles them first
	for _, value := range values {
		// get the linked descriptor
		l, err := c.FindRelativeDescriptor(value, d.Metadata().Repository)
		if err != nil {
			return createParserError(
				d,
				fmt.Sprintf("unable to find dependent descriptor '%s': %s", value, err))
		}

		// convert the descriptor to a cty type so it can be set
		// on the context
		ctyVal, err := convert.GoToCtyValue(l)
		if err != nil {
			return createParserError(
				d,
				fmt.Sprintf(`unable to convert reference %s to context variable: %s`, value, err))
		}

		// remove the attribute parts to get a pure descriptor reference
		fqrn, err := types.ParseFQRN(value)
		if err != nil {
			return createParserError(d, fmt.Sprintf("error parsing descriptor link: %s", err))
		}

		fqrn.Attribute = ""

		err = setContextVariableFromPath(ctx, fqrn.String(), ctyVal)
		if err != nil {
			return createParserError(d, fmt.Sprintf(`unable to set context variable: %s`, err))
		}
	}

	return nil
}

// validateLinkedDescriptors checks that the linked descriptors extracted
// from the interpolated values exist and that the referenced attributes
// are valid attributes of the descriptor, this gives much better error
// messages than a failed decode
func validateLinkedDescriptors(c *Config, d types.Descriptor, values []string) error {
	for _, value := range values {
		fqrn, err := types.ParseFQRN(value)
		if err != nil {
			return createParserError(d, fmt.Sprintf("error parsing descriptor link: %s", err))
		}

		// get the linked descriptor
		l, err := c.FindRelativeDescriptor(value, d.Metadata().Repository)
		if err != nil {
			return createParserError(
				d,
				fmt.Sprintf("unable to find dependent descriptor '%s': %s", value, err))
		}

		attr := fqrn.Attribute
		if fqrn.Type == types.TypeOutput {
			if attr == "" {
				attr = "value"
			} else {
				attr = "value." + attr
			}
		}

		// if we have additional properties, check the descriptor has them
		if attr != "" {
			properties := strings.Split(attr, ".")

			// flatten map key accesses like categories["main"] into
			// separate path parts
			flattened := []string{}
			for _, property := range properties {
				matches := attrPartRegex.FindStringSubmatch(property)

				parts := make(map[string]string)
				for i, name := range attrPartRegex.SubexpNames() {
					if i != 0 && name != "" {
						parts[name] = matches[i]
					}
				}

				flattened = append(flattened, parts["property"])
				if parts["key"] != "" {
					flattened = append(flattened, parts["key"])
				}
			}

			v := reflect.ValueOf(l)
			t := reflect.TypeOf(l)

			err = validateAttribute(v, t, flattened)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// validateAttribute checks if the attribute exists in the descriptor,
// this catches invalid references early and provides better error messages
func validateAttribute(v reflect.Value, t reflect.Type, properties []string) error {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		v = v.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		// a cty.Value can hold anything, assume it is valid
		if t.String() == "cty.Value" {
			return nil
		}

		// handle the embedded DescriptorBase
		if properties[0] == "meta" {
			b, found := t.FieldByName("DescriptorBase")
			if !found {
				return fmt.Errorf(`unable to find dependent attribute "%s"`, properties[0])
			}

			m, found := b.Type.FieldByName("Meta")
			if !found {
				return fmt.Errorf(`unable to find dependent attribute "%s"`, properties[0])
			}

			bv := v.FieldByName("DescriptorBase")
			mv := bv.FieldByName("Meta")

			return validateAttribute(mv, m.Type, properties[1:])
		}

		if properties[0] == "disabled" {
			_, found := t.FieldByName("DescriptorBase")
			if !found {
				return fmt.Errorf(`unable to find dependent attribute "%s"`, properties[0])
			}

			return nil
		}

		for index := 0; index < t.NumField(); index++ {
			f := t.Field(index)

			// compare the property with the hcl tags on the descriptor
			tag := f.Tag.Get("hcl")
			if strings.Contains(tag, properties[0]) {
				// if there are no further properties, we are done
				if len(properties) == 1 {
					return nil
				}

				fv := v.FieldByName(f.Name)

				// a nil pointer can not have its nested attributes resolved
				if fv.Type().Kind() == reflect.Ptr {
					if fv.IsNil() {
						return fmt.Errorf(`dependent attribute is not set: "%s"`, properties[0])
					}
				}

				return validateAttribute(fv, f.Type, properties[1:])
			}
		}

	case reflect.Slice:
		nt := t.Elem()

		// try to parse the index, if it fails its not a valid index
		i, err := strconv.ParseInt(properties[0], 10, 32)
		if err != nil {
			return fmt.Errorf(`invalid list index: "%s"`, properties[0])
		}

		// check that the index is not greater than the length of the slice
		if int(i) >= v.Len() {
			return fmt.Errorf(`list does not contain index: "%s"`, properties[0])
		}

		nv := v.Index(int(i))

		// if we only have an index, we are done
		if len(properties) == 1 {
			return nil
		}

		return validateAttribute(nv, nt, properties[1:])

	case reflect.Map:
		nt := t.Elem()

		// check that the referred key exists
		var nv reflect.Value
		var keyFound bool

		keys := v.MapKeys()
		for _, key := range keys {
			if key.String() == properties[0] {
				keyFound = true
				nv = v.MapIndex(key)
			}
		}

		if !keyFound {
			return fmt.Errorf(`map does not contain key: "%s"`, properties[0])
		}

		// if there are no further properties, we are done
		if len(properties) == 1 {
			return nil
		}

		return validateAttribute(nv, nt, properties[1:])

	// an interface can hold anything, assume it is valid
	case reflect.Interface:
		return nil
	}

	return fmt.Errorf(`unable to find dependent attribute: "%s"`, properties[0])
}

var attrPartRegex = regexp.MustCompile(`(?P<property>[a-zA-Z0-9_\-]*)(?:\[["']?(?P<key>[a-zA-Z0-9)_\-]*)["']?\])?`)

func createParserError(d types.Descriptor, msg string) *errors.ParserError {
	pe := &errors.ParserError{}
	pe.Filename = d.Metadata().File
	pe.Line = d.Metadata().Line
	pe.Column = d.Metadata().Column
	pe.Message = msg
	pe.Level = errors.ParserErrorLevelError

	return pe
}

func createParserWarning(d types.Descriptor, msg string) *errors.ParserError {
	pe := &errors.ParserError{}
	pe.Filename = d.Metadata().File
	pe.Line = d.Metadata().Line
	pe.Column = d.Metadata().Column
	pe.Message = msg
	pe.Level = errors.ParserErrorLevelWarning

	return pe
}
