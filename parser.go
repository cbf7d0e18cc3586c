package shedconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/toolshed-labs/shedconfig/errors"
	"github.com/toolshed-labs/shedconfig/logger"
	"github.com/toolshed-labs/shedconfig/types"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

type ParserOptions struct {
	// list of default variable values to add to the parser
	Variables map[string]string
	// list of variable files to be read by the parser
	VariablesFiles []string
	// environment variable prefix
	VariableEnvPrefix string
	// location of any downloaded descriptor repositories
	RepositoryCache string
	// callback executed when the graph processes a descriptor, callbacks
	// are executed in strict dependency order. If descriptor 'a' references
	// a property of descriptor 'b', the callback for 'b' is executed
	// before the callback for 'a'.
	ParseCallback WalkCallback
	// logger used by the parser
	Logger logger.Logger
}

// DefaultOptions returns a ParserOptions object with the
// RepositoryCache set to the default directory of $HOME/.shedconfig/cache,
// if the $HOME folder can not be determined, the cache is set to the
// current folder.
// VariableEnvPrefix is set to 'SHED_VAR_', should a variable be defined
// called 'foo' setting the environment variable 'SHED_VAR_foo' will
// override any default value
func DefaultOptions() *ParserOptions {
	cacheDir, err := os.UserHomeDir()
	if err != nil {
		cacheDir = "."
	}

	cacheDir = filepath.Join(cacheDir, ".shedconfig", "cache")
	os.MkdirAll(cacheDir, os.ModePerm)

	return &ParserOptions{
		RepositoryCache:   cacheDir,
		VariableEnvPrefix: "SHED_VAR_",
		Logger:            logger.NewStdOutLogger(),
	}
}

// Parser parses descriptor files into typed records
type Parser struct {
	options             ParserOptions
	registeredTypes     types.RegisteredTypes
	registeredFunctions map[string]function.Function
	getter              Getter
	log                 logger.Logger
}

// NewParser creates a new parser with the given options,
// if options are nil, default options are used
func NewParser(options *ParserOptions) *Parser {
	o := options
	if o == nil {
		o = DefaultOptions()
	}

	l := o.Logger
	if l == nil {
		l = logger.NewStdOutLogger()
	}

	return &Parser{
		options:             *o,
		registeredTypes:     types.DefaultTypes(),
		registeredFunctions: map[string]function.Function{},
		getter:              NewGoGetter(),
		log:                 l,
	}
}

// RegisterType registers a struct that implements Descriptor with the
// given type name, the parser uses this list to convert descriptor
// stanzas into concrete types
func (p *Parser) RegisterType(name string, d types.Descriptor) {
	p.registeredTypes[name] = d
}

// RegisterFunction registers a custom interpolation function with the
// given name
func (p *Parser) RegisterFunction(name string, f interface{}) error {
	ctyFunc, err := createCtyFunctionFromGoFunc(f)
	if err != nil {
		return err
	}

	p.registeredFunctions[name] = ctyFunc

	return nil
}

// ParseFile parses the descriptors in a single file, the returned config
// has all interpolated values resolved and all descriptors validated
func (p *Parser) ParseFile(file string) (*Config, error) {
	c := NewConfig()
	ctx := buildContext(file, p.registeredFunctions)

	p.log.Debug("parsing file", "file", file)

	err := p.parseFile(ctx, file, c, p.options.Variables, p.options.VariablesFiles)
	if err != nil {
		return nil, err
	}

	// process the files and resolve dependencies
	return c, c.process(createCallback(c, p.options.ParseCallback), false)
}

// ParseDirectory parses all descriptor and variable files in the given
// directory, note: this method does not recurse into sub folders
func (p *Parser) ParseDirectory(dir string) (*Config, error) {
	c := NewConfig()
	ctx := buildContext(dir, p.registeredFunctions)

	p.log.Debug("parsing directory", "dir", dir)

	err := p.parseDirectory(ctx, dir, c)
	if err != nil {
		return nil, err
	}

	// process the files and resolve dependencies
	return c, c.process(createCallback(c, p.options.ParseCallback), false)
}

// internal method
func (p *Parser) parseDirectory(ctx *hcl.EvalContext, dir string, c *Config) error {
	// get all files in a directory
	pathInfo, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("directory %s does not exist", dir)
	}

	if !pathInfo.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("unable to list files in directory %s, error: %s", dir, err)
	}

	variablesFiles := p.options.VariablesFiles

	// first process vars files
	for _, f := range files {
		fn := filepath.Join(dir, f.Name())

		if !f.IsDir() {
			if strings.HasSuffix(fn, ".vars") {
				// add to the collection
				variablesFiles = append(variablesFiles, fn)
			}
		}
	}

	for _, f := range files {
		fn := filepath.Join(dir, f.Name())

		if !f.IsDir() {
			if strings.HasSuffix(fn, ".hcl") {
				err := p.parseFile(ctx, fn, c, p.options.Variables, variablesFiles)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// parseFile loads variables and descriptors from the given file
func (p *Parser) parseFile(
	ctx *hcl.EvalContext,
	file string,
	c *Config,
	variables map[string]string,
	variablesFile []string) error {

	// This must be done before any other processing as the descriptors
	// might reference the variables
	err := p.parseVariablesInFile(ctx, file, c)
	if err != nil {
		return err
	}

	// override any variables from files
	for _, vf := range variablesFile {
		err := p.loadVariablesFromFile(ctx, vf)
		if err != nil {
			return err
		}
	}

	// override default values for variables from the environment or the
	// provided variables map
	p.setVariables(ctx, variables)

	err = p.parseDescriptorsInFile(ctx, file, c, "", false, []string{})
	if err != nil {
		return err
	}

	return nil
}

// loadVariablesFromFile loads variable values from a file
func (p *Parser) loadVariablesFromFile(ctx *hcl.EvalContext, path string) error {
	parser := hclparse.NewParser()

	f, diag := parser.ParseHCLFile(path)
	if diag.HasErrors() {
		return errors.NewParserError(path, 0, 0, errors.ParserErrorLevelError, diag.Error())
	}

	attrs, _ := f.Body.JustAttributes()
	for name, attr := range attrs {
		val, _ := attr.Expr.Value(ctx)

		setContextVariable(ctx, name, val)
	}

	return nil
}

// setVariables allows variables to be set from a collection or environment
// variables.
// Precedence should be file, env, vars.
func (p *Parser) setVariables(ctx *hcl.EvalContext, vars map[string]string) {
	// first any vars defined as environment variables
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, p.options.VariableEnvPrefix) {
			parts := strings.SplitN(e, "=", 2)

			if len(parts) == 2 {
				key := strings.Replace(parts[0], p.options.VariableEnvPrefix, "", -1)
				setContextVariable(ctx, key, valueFromString(parts[1]))
			}
		}
	}

	// then set vars
	for k, v := range vars {
		setContextVariable(ctx, k, valueFromString(v))
	}
}

func valueFromString(v string) cty.Value {
	// attempt to parse the string value into a known type
	if val, err := strconv.ParseInt(v, 10, 0); err == nil {
		return cty.NumberIntVal(val)
	}

	if val, err := strconv.ParseBool(v); err == nil {
		return cty.BoolVal(val)
	}

	// otherwise return a string
	return cty.StringVal(v)
}

// parseVariablesInFile parses a descriptor file for variable stanzas
func (p *Parser) parseVariablesInFile(ctx *hcl.EvalContext, file string, c *Config) error {
	parser := hclparse.NewParser()

	f, diag := parser.ParseHCLFile(file)
	if diag.HasErrors() {
		return errors.NewParserErrorFromHCLDiag(diag[0], file)
	}

	body, ok := f.Body.(*hclsyntax.Body)
	if !ok {
		return fmt.Errorf("unable to read body from file %s", file)
	}

	for _, b := range body.Blocks {
		switch b.Type {
		case types.TypeVariable:
			if len(b.Labels) != 1 {
				return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
					`invalid syntax for 'variable' stanza, variables should be formatted 'variable "name" {}'`)
			}

			d, _ := p.registeredTypes.CreateDescriptor(types.TypeVariable, b.Labels[0])
			v := d.(*types.Variable)

			v.Meta.File = file
			v.Meta.Line = b.TypeRange.Start.Line
			v.Meta.Column = b.TypeRange.Start.Column

			if attr, ok := b.Body.Attributes["description"]; ok {
				val, _ := attr.Expr.Value(ctx)
				if val.Type() == cty.String {
					v.Description = val.AsString()
				}
			}

			defAttr, ok := b.Body.Attributes["default"]
			if !ok {
				return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
					fmt.Sprintf(`variable "%s" does not define a default value`, v.Meta.Name))
			}

			val, diag := defAttr.Expr.Value(ctx)
			if diag.HasErrors() {
				return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
					fmt.Sprintf(`unable to read default value for variable "%s": %s`, v.Meta.Name, diag.Error()))
			}

			v.Default = castVar(val)

			// add the variable to the config
			c.AppendDescriptor(v)

			// values already set by a file, the environment, or the
			// variables map take precedence over the default
			setContextVariableIfMissing(ctx, v.Meta.Name, val)
		}
	}

	return nil
}

// parseDescriptorsInFile parses a descriptor file and adds any found
// descriptors to the config
func (p *Parser) parseDescriptorsInFile(ctx *hcl.EvalContext, file string, c *Config, repositoryName string, disabled bool, dependsOn []string) error {
	parser := hclparse.NewParser()

	f, diag := parser.ParseHCLFile(file)
	if diag.HasErrors() {
		return errors.NewParserErrorFromHCLDiag(diag[0], file)
	}

	body, ok := f.Body.(*hclsyntax.Body)
	if !ok {
		return fmt.Errorf("unable to read body from file %s", file)
	}

	for _, b := range body.Blocks {
		// check the stanza has a name
		if len(b.Labels) == 0 {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				fmt.Sprintf("stanza '%s' has no name, please specify stanzas using the syntax 'descriptor \"type\" \"name\" {}'", b.Type))
		}

		// variables are processed in a separate run
		switch b.Type {
		case types.TypeVariable:
			continue
		case types.TypeRepository:
			err := p.parseRepository(ctx, c, file, b, repositoryName, dependsOn)
			if err != nil {
				return err
			}
		case types.TypeOutput:
			fallthrough
		case blockTypeDescriptor:
			err := p.parseDescriptor(ctx, c, file, b, repositoryName, dependsOn, disabled)
			if err != nil {
				return err
			}
		default:
			return errors.NewParserError(file, b.Range().Start.Line, b.Range().Start.Column, errors.ParserErrorLevelError,
				fmt.Sprintf("unable to process stanza '%s', only 'variable', 'descriptor', 'repository', and 'output' are valid stanza blocks", b.Type))
		}
	}

	return nil
}

// blockTypeDescriptor is the stanza keyword for typed descriptor records
const blockTypeDescriptor = "descriptor"

func setDisabled(ctx *hcl.EvalContext, d types.Descriptor, b *hclsyntax.Body, parentDisabled bool) error {
	if b == nil {
		return nil
	}

	if parentDisabled {
		d.SetDisabled(true)
		return nil
	}

	if attr, ok := b.Attributes["disabled"]; ok {
		disabled, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			// disabled might reference an unprocessed descriptor, the
			// expression is evaluated again when the graph is walked
			return nil
		}

		if disabled.Type() == cty.Bool {
			d.SetDisabled(disabled.True())
		}
	}

	return nil
}

func setDependsOn(ctx *hcl.EvalContext, d types.Descriptor, b *hclsyntax.Body, dependsOn []string) error {
	d.SetDependencies(dependsOn)

	if attr, ok := b.Attributes["depends_on"]; ok {
		dependsOnVal, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return fmt.Errorf("unable to read depends_on attribute: %s", diags.Error())
		}

		// depends_on must be a list of string, anything else would panic
		// when iterated
		if dependsOnVal.IsNull() || (!dependsOnVal.Type().IsTupleType() && !dependsOnVal.Type().IsListType()) {
			return fmt.Errorf(`depends_on must be a list of descriptor references, i.e. depends_on = ["descriptor.tool_dependency.samtools"]`)
		}

		for _, dep := range dependsOnVal.AsValueSlice() {
			if dep.Type() != cty.String {
				return fmt.Errorf(`depends_on must be a list of descriptor references, i.e. depends_on = ["descriptor.tool_dependency.samtools"]`)
			}

			_, err := types.ParseFQRN(dep.AsString())
			if err != nil {
				return fmt.Errorf("invalid dependency %s, %s", dep.AsString(), err)
			}

			d.AddDependency(dep.AsString())
		}
	}

	return nil
}

func (p *Parser) parseRepository(ctx *hcl.EvalContext, c *Config, file string, b *hclsyntax.Block, repositoryName string, dependsOn []string) error {
	// check the repository has a name
	if len(b.Labels) != 1 {
		return errors.NewParserError(file, b.Range().Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
			`invalid syntax for 'repository' stanza, repositories should be formatted 'repository "name" {}'`)
	}

	name := b.Labels[0]
	if err := validateDescriptorName(name); err != nil {
		return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError, err.Error())
	}

	rt, _ := p.registeredTypes.CreateDescriptor(types.TypeRepository, name)

	rt.Metadata().Repository = repositoryName
	rt.Metadata().File = file
	rt.Metadata().Line = b.TypeRange.Start.Line
	rt.Metadata().Column = b.TypeRange.Start.Column

	setDescriptorLinks(b, rt)

	setDisabled(ctx, rt, b.Body, false)

	err := setDependsOn(ctx, rt, b.Body, dependsOn)
	if err != nil {
		return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError, err.Error())
	}

	// we need to fetch the source so that the child descriptors can be
	// parsed, "source" is read manually as the body is lazily decoded
	srcAttr, ok := b.Body.Attributes["source"]
	if !ok {
		return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
			fmt.Sprintf(`repository "%s" does not define a source`, name))
	}

	src, diags := srcAttr.Expr.Value(ctx)
	if diags.HasErrors() {
		return fmt.Errorf("unable to read source from repository: %s", diags.Error())
	}

	// src could be a remote source or a relative folder,
	// first check if it is a folder relative to the current file
	dir := path.Dir(file)
	repoSrc := path.Join(dir, src.AsString())

	fi, err := os.Stat(repoSrc)
	if err != nil || !fi.IsDir() {
		// not a local directory, fetch from the source using go-getter
		p.log.Info("fetching remote repository", "source", src.AsString())

		mp, err := p.getter.Get(src.AsString(), p.options.RepositoryCache, false)
		if err != nil {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				fmt.Sprintf(`unable to fetch remote repository "%s": %s`, src.AsString(), err))
		}

		repoSrc = mp
	}

	// create a new config and add the descriptors later
	repoConfig := NewConfig()

	// repositories have their own context so that variables are not
	// globally scoped
	subContext := buildContext(repoSrc, p.registeredFunctions)

	err = p.parseDirectory(subContext, repoSrc, repoConfig)
	if err != nil {
		return err
	}

	rt.(*types.Repository).SubContext = subContext

	// add the repository
	err = c.addDescriptor(rt, ctx, b.Body)
	if err != nil {
		return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
			fmt.Sprintf(`unable to add repository "%s" to config: %s`, name, err))
	}

	// we need to prefix the repository name to all the loaded descriptors
	for _, d := range repoConfig.Descriptors {
		// ensure the repository name has the parent prepended to it
		d.Metadata().Repository = fmt.Sprintf("%s.%s", name, d.Metadata().Repository)
		d.Metadata().Repository = strings.TrimSuffix(d.Metadata().Repository, ".")

		dctx, err := repoConfig.getContext(d)
		if err != nil {
			// variables have no context, skip them
			if d.Metadata().Type == types.TypeVariable {
				continue
			}

			return fmt.Errorf(`no context found for descriptor "%s"`, d.Metadata().ID)
		}

		bdy, err := repoConfig.getBody(d)
		if err != nil {
			return fmt.Errorf(`no body found for descriptor "%s"`, d.Metadata().ID)
		}

		// if the repository is disabled all the descriptors it contains
		// are disabled
		setDisabled(dctx, d, bdy, rt.GetDisabled())

		err = c.addDescriptor(d, dctx, bdy)
		if err != nil {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				fmt.Sprintf(`unable to add descriptor "%s" to config: %s`, d.Metadata().ID, err))
		}
	}

	return nil
}

func (p *Parser) parseDescriptor(ctx *hcl.EvalContext, c *Config, file string, b *hclsyntax.Block, repositoryName string, dependsOn []string, disabled bool) error {
	var dt types.Descriptor
	var err error

	switch b.Type {
	case blockTypeDescriptor:
		// descriptor stanzas have two labels, the type and the name
		if len(b.Labels) != 2 {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				`invalid formatting for 'descriptor' stanza, descriptors should have a type and a name, i.e. 'descriptor "tool_dependency" "gemini" {}'`)
		}

		name := b.Labels[1]
		if err := validateDescriptorName(name); err != nil {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError, err.Error())
		}

		dt, err = p.registeredTypes.CreateDescriptor(b.Labels[0], name)
		if err != nil {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				fmt.Sprintf("unable to create descriptor '%s': %s", b.Labels[0], err))
		}
	case types.TypeOutput:
		// output stanzas have a single label, the name
		if len(b.Labels) != 1 {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				`invalid formatting for 'output' stanza, outputs should have a name, i.e. 'output "name" {}'`)
		}

		name := b.Labels[0]
		if err := validateDescriptorName(name); err != nil {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError, err.Error())
		}

		dt, err = p.registeredTypes.CreateDescriptor(types.TypeOutput, name)
		if err != nil {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				fmt.Sprintf(`unable to create output, this error should never happen: %s`, err))
		}
	}

	dt.Metadata().Repository = repositoryName
	dt.Metadata().File = file
	dt.Metadata().Line = b.TypeRange.Start.Line
	dt.Metadata().Column = b.TypeRange.Start.Column

	// extract the links from the body, the body itself is decoded when
	// the graph is walked and the linked values are known
	setDescriptorLinks(b, dt)

	// disabled is a property of the embedded base, set it manually
	setDisabled(ctx, dt, b.Body, disabled)

	// depends_on is a property of the embedded base, set it manually
	err = setDependsOn(ctx, dt, b.Body, dependsOn)
	if err != nil {
		return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
			fmt.Sprintf(`unable to set depends_on: %s`, err))
	}

	// if the descriptor implements the parsable interface call the parse
	// method
	if pa, ok := dt.(types.Parsable); ok {
		err := pa.Parse(c)
		if err != nil {
			return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
				fmt.Sprintf(`error parsing descriptor "%s": %s`, types.FQRNFromDescriptor(dt).String(), err))
		}
	}

	// compute the parsed checksum before the graph overwrites any fields
	if data, jerr := json.Marshal(dt); jerr == nil {
		dt.Metadata().Checksum.Parsed = HashString(string(data))
	}

	err = c.addDescriptor(dt, ctx, b.Body)
	if err != nil {
		return errors.NewParserError(file, b.TypeRange.Start.Line, b.TypeRange.Start.Column, errors.ParserErrorLevelError,
			fmt.Sprintf(`unable to add descriptor "%s" to config: %s`, types.FQRNFromDescriptor(dt).String(), err))
	}

	return nil
}

// setDescriptorLinks scans the attributes and blocks of the stanza for
// references to other descriptors and stores the unique list on the
// descriptors metadata, the links become edges in the dependency graph
func setDescriptorLinks(b *hclsyntax.Block, d types.Descriptor) {
	refs := getDependentDescriptors(b)

	// filter the list so that the links are unique
	unique := []string{}
	for _, v := range refs {
		found := false
		for _, r := range unique {
			if r == v {
				found = true
				break
			}
		}

		if !found {
			unique = append(unique, v)
		}
	}

	d.Metadata().Links = unique
}

// getDependentDescriptors recursively checks the attributes and blocks of
// the stanza to identify links to other descriptors
// i.e. descriptor.tool_dependency.gemini.owner
func getDependentDescriptors(b *hclsyntax.Block) []string {
	references := []string{}

	for _, a := range b.Body.Attributes {
		refs, err := processExpr(a.Expr)
		if err == nil {
			references = append(references, refs...)
		}
	}

	for _, cb := range b.Body.Blocks {
		references = append(references, getDependentDescriptors(cb)...)
	}

	return references
}

// processExpr extracts the descriptor references from an HCL expression,
// expressions can be nested so this function calls itself recursively.
// examples:
// something = descriptor.tool_dependency.gemini.owner
// something = env(descriptor.tool_dependency.gemini.owner)
// something = "prefix/${descriptor.tool_dependency.gemini.owner}"
func processExpr(expr hclsyntax.Expression) ([]string, error) {
	references := []string{}

	switch e := expr.(type) {
	case *hclsyntax.TemplateExpr:
		// a template is a mix of functions, scope expressions and
		// literals, check each part
		for _, v := range e.Parts {
			refs, err := processExpr(v)
			if err != nil {
				return nil, err
			}

			references = append(references, refs...)
		}
	case *hclsyntax.FunctionCallExpr:
		// a function can contain args that may also have an expression
		for _, v := range e.Args {
			refs, err := processExpr(v)
			if err != nil {
				return nil, err
			}

			references = append(references, refs...)
		}
	case *hclsyntax.ScopeTraversalExpr:
		ref, err := processScopeTraversal(e)
		if err != nil {
			return nil, err
		}

		// only add if a descriptor reference has been returned
		if ref != "" {
			references = append(references, ref)
		}
	case *hclsyntax.ConditionalExpr:
		for _, v := range []hclsyntax.Expression{e.Condition, e.TrueResult, e.FalseResult} {
			refs, err := processExpr(v)
			if err != nil {
				return nil, err
			}

			references = append(references, refs...)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, v := range e.Items {
			refs, err := processExpr(v.ValueExpr)
			if err != nil {
				return nil, err
			}

			references = append(references, refs...)
		}
	case *hclsyntax.TupleConsExpr:
		for _, v := range e.Exprs {
			refs, err := processExpr(v)
			if err != nil {
				return nil, err
			}

			references = append(references, refs...)
		}
	}

	return references, nil
}

func processScopeTraversal(expr *hclsyntax.ScopeTraversalExpr) (string, error) {
	strExpression := ""
	for i, t := range expr.Traversal {
		if i == 0 {
			strExpression += t.(hcl.TraverseRoot).Name

			// if this is not a descriptor or repository reference quit
			if strExpression != blockTypeDescriptor && strExpression != types.TypeRepository {
				return "", nil
			}
		} else {
			switch tt := t.(type) {
			case hcl.TraverseAttr:
				strExpression += "." + tt.Name
			case hcl.TraverseIndex:
				strExpression += "[" + tt.Key.AsBigFloat().String() + "]"
			}
		}
	}

	// the reference is resolved before the body is decoded when the graph
	// is walked
	return strExpression, nil
}

func setContextVariableIfMissing(ctx *hcl.EvalContext, key string, value cty.Value) {
	if m, ok := ctx.Variables["variable"]; ok {
		if _, ok := m.AsValueMap()[key]; ok {
			return
		}
	}

	setContextVariable(ctx, key, value)
}

func setContextVariable(ctx *hcl.EvalContext, key string, value cty.Value) {
	valMap := map[string]cty.Value{}

	// get the existing map
	if m, ok := ctx.Variables["variable"]; ok {
		valMap = m.AsValueMap()
	}

	valMap[key] = value

	ctx.Variables["variable"] = cty.ObjectVal(valMap)
}

// setContextVariableFromPath sets a context variable using a nested
// structure based on the given path. Creates any child maps needed to
// satisfy the path.
func setContextVariableFromPath(ctx *hcl.EvalContext, path string, value cty.Value) error {
	ul := getContextLock(ctx)
	defer ul()

	pathParts := strings.Split(path, ".")

	var err error
	ctx.Variables, err = setMapVariableFromPath(ctx.Variables, pathParts, value)

	return err
}

func setMapVariableFromPath(root map[string]cty.Value, path []string, value cty.Value) (map[string]cty.Value, error) {
	// it is possible for root to be nil, ensure this is set to an empty map
	if root == nil {
		root = map[string]cty.Value{}
	}

	// get the name and the index from the path
	name, index, rPath, err := getNameAndIndex(path)
	if err != nil {
		return nil, err
	}

	// do we have a node at this path, if not create it
	// nodes can either be a map or a list of maps
	val, ok := root[name]
	if !ok {
		if index >= 0 {
			// create a list with the correct length
			vals := make([]cty.Value, index+1)

			val = cty.ListVal(vals)
		} else {
			// create a map node
			val = cty.ObjectVal(map[string]cty.Value{".keep": cty.BoolVal(true)})
		}
	}

	if index >= 0 {
		// if we have an index we need to set the list variable for the map
		// at that index and then recursively set the other elements
		updated, err := setListVariableFromPath(val.AsValueSlice(), rPath, index, value)
		if err != nil {
			return nil, err
		}

		root[name] = cty.ListVal(updated)
	} else {
		// if this is the end of the line set the value and return
		if len(rPath) == 0 {
			root[name] = value
			return root, nil
		}

		// we are setting a map, recurse
		updated, err := setMapVariableFromPath(val.AsValueMap(), rPath, value)
		if err != nil {
			return nil, err
		}

		root[name] = cty.ObjectVal(updated)
	}

	return root, nil
}

func setListVariableFromPath(root []cty.Value, path []string, index int, value cty.Value) ([]cty.Value, error) {
	// we have a node but do we need to expand it in size?
	if index >= len(root) {
		root = append(root, make([]cty.Value, index+1-len(root))...)
	}

	var setVal cty.Value
	if len(path) > 0 {
		val := root[index]
		if val.IsNull() {
			val = cty.ObjectVal(map[string]cty.Value{".keep": cty.BoolVal(true)})
		}

		updated, err := setMapVariableFromPath(val.AsValueMap(), path, value)
		if err != nil {
			return nil, err
		}

		setVal = cty.ObjectVal(updated)
	} else {
		setVal = value
	}

	// check the type of the collection, if trying to set a type that is
	// inconsistent with the other types in the collection, return an error
	if len(root) > 0 {
		if root[0].Type() != cty.NilType && root[0].Type().FriendlyName() != setVal.Type().FriendlyName() {
			return nil, fmt.Errorf("lists must contain similar types, you have tried to set a %s, to a list of type %s", value.Type().FriendlyName(), root[0].Type().FriendlyName())
		}
	}

	root[index] = setVal

	// build a unique list of keys and types, if the node contains a list
	// of maps
	ul := map[string]cty.Type{}
	for _, m := range root {
		if m.Type().IsObjectType() || m.Type().IsMapType() {
			for k, v := range m.AsValueMap() {
				ul[k] = v.Type()
			}
		}
	}

	if len(ul) == 0 {
		return root, nil
	}

	// we need to normalize the map collection as cty does not allow
	// inconsistent map keys
	for k, v := range ul {
		for i, m := range root {
			var val map[string]cty.Value
			if m.IsNull() {
				val = map[string]cty.Value{".keep": cty.BoolVal(true)}
			}

			if _, ok := m.AsValueMap()[k]; !ok {
				val = root[i].AsValueMap()
				val[k] = cty.NullVal(v)
				root[i] = cty.ObjectVal(val)
			}
		}
	}

	return root, nil
}

var indexRegex = regexp.MustCompile(`(.*)\[(.+)\]`)

// getNameAndIndex gets the name of the path element and an optional index
// if path[0] == foo    and path[1] = bar[0] returns foo, -1, nil
// if path[0] == bar[0] and path[1] = biz    returns bar, 0, nil
// if path[0] == foo    and path[1] = 0      returns foo, 0, nil
// if path[0] == foo    and path[1] = bar    returns foo, -1, nil
func getNameAndIndex(path []string) (name string, index int, remainingPath []string, err error) {
	index = -1

	// is the path an array with parenthesis
	if sm := indexRegex.FindStringSubmatch(path[0]); len(sm) == 3 {
		name = sm[1]

		var convErr error
		index, convErr = strconv.Atoi(sm[2])
		if convErr != nil {
			return "", -1, nil, fmt.Errorf("index %s is not a number", sm[2])
		}

		return name, index, path[1:], nil
	}

	// is the path a number using the . notation for an index
	if len(path) > 1 {
		index, convErr := strconv.Atoi(path[1])
		if convErr == nil {
			return path[0], index, path[2:], nil
		}
	}

	// normal path item
	return path[0], -1, path[1:], nil
}

func buildContext(filePath string, customFunctions map[string]function.Function) *hcl.EvalContext {
	ctx := &hcl.EvalContext{
		Functions: map[string]function.Function{},
		Variables: map[string]cty.Value{},
	}

	valMap := map[string]cty.Value{}
	ctx.Variables[blockTypeDescriptor] = cty.ObjectVal(valMap)

	ctx.Functions = getDefaultFunctions(filePath)

	// add the custom functions
	for k, v := range customFunctions {
		ctx.Functions[k] = v
	}

	return ctx
}

// UnmarshalJSON parses a JSON string from a serialized Config and returns
// a valid Config, descriptors are rehydrated into their concrete types
// through the registered types
func (p *Parser) UnmarshalJSON(d []byte) (*Config, error) {
	conf := NewConfig()

	var objMap map[string]*json.RawMessage
	err := json.Unmarshal(d, &objMap)
	if err != nil {
		return nil, err
	}

	if objMap["descriptors"] == nil {
		return conf, nil
	}

	var rawDescriptors []*json.RawMessage
	err = json.Unmarshal(*objMap["descriptors"], &rawDescriptors)
	if err != nil {
		return nil, err
	}

	for _, m := range rawDescriptors {
		mm := map[string]interface{}{}
		err := json.Unmarshal(*m, &mm)
		if err != nil {
			return nil, err
		}

		meta, ok := mm["meta"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("descriptor does not contain metadata")
		}

		r, err := p.registeredTypes.CreateDescriptor(meta["type"].(string), meta["name"].(string))
		if err != nil {
			return nil, err
		}

		resData, _ := json.Marshal(mm)

		err = json.Unmarshal(resData, r)
		if err != nil {
			return nil, err
		}

		if repo, ok := meta["repository"].(string); ok {
			r.Metadata().Repository = repo
		}

		err = conf.addDescriptor(r, nil, nil)
		if err != nil {
			return nil, err
		}
	}

	return conf, nil
}

func validateDescriptorName(name string) error {
	if name == blockTypeDescriptor || name == types.TypeRepository || name == types.TypeOutput || name == types.TypeVariable || name == "meta" {
		return fmt.Errorf("invalid descriptor name %s, descriptors can not use the reserved names [descriptor, repository, output, variable, meta]", name)
	}

	if numericNameRegex.MatchString(name) {
		return fmt.Errorf("invalid descriptor name %s, descriptors can not be given a numeric identifier", name)
	}

	if invalidNameCharsRegex.MatchString(name) {
		return fmt.Errorf("invalid descriptor name %s, descriptors can only contain the characters 0-9 a-z A-Z _ -", name)
	}

	return nil
}

var numericNameRegex = regexp.MustCompile(`^[0-9]*$`)
var invalidNameCharsRegex = regexp.MustCompile(`[^0-9a-zA-Z_-]`)
