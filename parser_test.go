package shedconfig

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/toolshed-labs/shedconfig/logger"
	"github.com/toolshed-labs/shedconfig/types"
	"github.com/zclconf/go-cty/cty"
)

func setupParser(t *testing.T, options ...*ParserOptions) *Parser {
	var o *ParserOptions

	if len(options) > 0 {
		o = options[0]
	} else {
		o = DefaultOptions()
	}

	o.RepositoryCache = t.TempDir()
	o.Logger = logger.NewTestLogger(t)

	return NewParser(o)
}

func TestNewParserWithOptions(t *testing.T) {
	options := ParserOptions{
		Variables:      map[string]string{"foo": "bar"},
		VariablesFiles: []string{"./myfile.vars"},
		Logger:         logger.NewTestLogger(t),
	}

	p := NewParser(&options)
	require.NotNil(t, p)

	require.Equal(t, p.options.Variables["foo"], "bar")
	require.Equal(t, p.options.VariablesFiles[0], "./myfile.vars")
}

func TestParseFileProcessesDescriptors(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)
	require.NotNil(t, d)

	v, err := c.FindDescriptor("variable.owner")
	require.NoError(t, err)
	require.NotNil(t, v)

	td := d.(*types.ToolDependency)

	require.Equal(t, "descriptor.tool_dependency.gemini", td.Meta.ID)
	require.Equal(t, "gemini", td.Meta.Name)
	require.Equal(t, types.TypeToolDependency, td.Meta.Type)
	require.Equal(t, f, td.Meta.File)

	// the variable should have been interpolated
	require.Equal(t, "iuc", td.Owner)

	// file function should have read the description
	require.Contains(t, td.LongDescription, "GEnome MINIng")

	// category order should follow the order of the config
	require.Equal(t, []string{"Sequence Analysis", "Variant Analysis"}, td.Categories)

	require.Len(t, td.Packages, 2)
	require.Equal(t, "gemini", td.Packages[0].Name)
	require.Equal(t, "0.18.1", td.Packages[0].Version)
	require.Equal(t, "https://github.com/arq5x/gemini/archive/v0.18.1.tar.gz", td.Packages[0].Source)
}

func TestParseFileSetsPackageFormatDefaults(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	td := d.(*types.ToolDependency)

	// format not set in config, should fall back to the default
	require.Equal(t, "tar.gz", td.Packages[0].Format)

	// explicitly set format should not be overridden
	require.Equal(t, "zip", td.Packages[1].Format)
}

func TestParseFileSetsChecksums(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	require.NotEmpty(t, d.Metadata().Checksum.Parsed)
	require.NotEmpty(t, d.Metadata().Checksum.Processed)
	require.NotEqual(t, d.Metadata().Checksum.Parsed, d.Metadata().Checksum.Processed)
}

func TestParseFileResolvesOutputs(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	o, err := c.FindDescriptor("output.repository_url")
	require.NoError(t, err)

	require.Equal(t, "https://github.com/arq5x/gemini", o.(*types.Output).Value)
}

func TestParseDirectory(t *testing.T) {
	dir, err := filepath.Abs("./test_fixtures/simple")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseDirectory(dir)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestParseDirectoryNotExistsReturnsError(t *testing.T) {
	p := setupParser(t)

	_, err := p.ParseDirectory("./test_fixtures/nothere")
	require.Error(t, err)
}

func TestVariableOverriddenFromEnvironment(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	t.Setenv("SHED_VAR_owner", "devteam")

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	require.Equal(t, "devteam", d.(*types.ToolDependency).Owner)
}

func TestVariableOverriddenFromOptions(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	// variables set in the options should win over the environment
	t.Setenv("SHED_VAR_owner", "devteam")

	o := DefaultOptions()
	o.Variables = map[string]string{"owner": "bgruening"}

	p := setupParser(t, o)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	require.Equal(t, "bgruening", d.(*types.ToolDependency).Owner)
}

func TestVariableOverriddenFromFile(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	vf, err := filepath.Abs("./test_fixtures/vars/override.vars")
	require.NoError(t, err)

	o := DefaultOptions()
	o.VariablesFiles = []string{vf}

	p := setupParser(t, o)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	require.Equal(t, "bgruening", d.(*types.ToolDependency).Owner)
}

func TestParseResolvesLinkedDescriptors(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/depends/depends.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	td := d.(*types.ToolDependency)

	// owner is interpolated from the samtools descriptor
	require.Equal(t, "iuc", td.Owner)

	// the implicit link should have been merged into the dependencies
	require.Contains(t, td.DependsOn, "descriptor.tool_dependency.samtools")

	o, err := c.FindDescriptor("output.shared_owner")
	require.NoError(t, err)
	require.Equal(t, "iuc", o.(*types.Output).Value)
}

func TestParseCallbackCalledInDependencyOrder(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/depends/depends.hcl")
	require.NoError(t, err)

	var mu sync.Mutex
	order := []string{}

	o := DefaultOptions()
	o.ParseCallback = func(d types.Descriptor) error {
		mu.Lock()
		defer mu.Unlock()

		order = append(order, d.Metadata().ID)
		return nil
	}

	p := setupParser(t, o)

	_, err = p.ParseFile(f)
	require.NoError(t, err)

	require.Len(t, order, 3)

	// samtools must be processed before gemini, gemini before the output
	require.Less(t, indexOf(t, order, "descriptor.tool_dependency.samtools"), indexOf(t, order, "descriptor.tool_dependency.gemini"))
	require.Less(t, indexOf(t, order, "descriptor.tool_dependency.gemini"), indexOf(t, order, "output.shared_owner"))
}

func indexOf(t *testing.T, list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}

	t.Fatalf("value %s not found in %v", value, list)
	return -1
}

func TestParseDisabledDescriptorSkipsCallbackAndValidation(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/disabled/disabled.hcl")
	require.NoError(t, err)

	var mu sync.Mutex
	called := []string{}

	o := DefaultOptions()
	o.ParseCallback = func(d types.Descriptor) error {
		mu.Lock()
		defer mu.Unlock()

		called = append(called, d.Metadata().ID)
		return nil
	}

	p := setupParser(t, o)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	// the disabled descriptor is still findable
	d, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)
	require.True(t, d.GetDisabled())

	// but the callback should only have seen samtools
	require.Equal(t, []string{"descriptor.tool_dependency.samtools"}, called)
}

func TestParseInvalidStanzaReturnsError(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/invalid/bad_stanza.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	_, err = p.ParseFile(f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unable to process stanza")
}

func TestParseDescriptorWithMissingNameReturnsError(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/invalid/no_name.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	_, err = p.ParseFile(f)
	require.Error(t, err)
}

func TestParseDuplicateDescriptorReturnsError(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/invalid/duplicate.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	_, err = p.ParseFile(f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestParseDependsOnNotAListReturnsError(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/invalid/depends_on_not_list.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	// a string where a list is expected must surface as a positional
	// error, not crash the parse
	_, err = p.ParseFile(f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "depends_on must be a list")
}

func TestParseDependsOnWithNonStringElementsReturnsError(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/invalid/depends_on_not_strings.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	_, err = p.ParseFile(f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "depends_on must be a list")
}

func TestParseMissingOwnerFailsValidation(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/invalid/missing_owner.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	_, err = p.ParseFile(f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires an owner")
}

func TestParseInvalidURLFailsValidation(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/invalid/bad_url.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	_, err = p.ParseFile(f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid remote_repository_url")
}

func TestParseRepositoryLoadsDescriptors(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/repository/repo.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	d, err := c.FindDescriptor("repository.bio.descriptor.tool_dependency.bedtools")
	require.NoError(t, err)

	td := d.(*types.ToolDependency)

	// the repository variables should override the variable default
	require.Equal(t, "devteam", td.Owner)
	require.Equal(t, "bio", td.Meta.Repository)

	// outputs can reference descriptors inside repositories
	o, err := c.FindDescriptor("output.tool_owner")
	require.NoError(t, err)
	require.Equal(t, "devteam", o.(*types.Output).Value)
}

func TestParserUnmarshalJSONRehydratesConfig(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	loaded, err := p.UnmarshalJSON(data)
	require.NoError(t, err)

	require.Equal(t, c.DescriptorCount(), loaded.DescriptorCount())

	d, err := loaded.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	orig, err := c.FindDescriptor("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	td := d.(*types.ToolDependency)
	otd := orig.(*types.ToolDependency)

	require.Equal(t, otd.Owner, td.Owner)
	require.Equal(t, otd.Categories, td.Categories)
	require.Equal(t, otd.RemoteRepositoryURL, td.RemoteRepositoryURL)
	require.Equal(t, otd.Packages, td.Packages)
	require.Equal(t, otd.Meta.Checksum.Processed, td.Meta.Checksum.Processed)
}

func TestParserUnmarshalJSONIsIdempotent(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	p := setupParser(t)

	c, err := p.ParseFile(f)
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	loaded, err := p.UnmarshalJSON(data)
	require.NoError(t, err)

	// serializing the rehydrated config should produce the same document
	data2, err := json.Marshal(loaded)
	require.NoError(t, err)

	require.JSONEq(t, string(data), string(data2))
}

func TestParserRegisterFunction(t *testing.T) {
	p := setupParser(t)

	err := p.RegisterFunction("constant", func() (string, error) {
		return "fixed", nil
	})
	require.NoError(t, err)

	require.Contains(t, p.registeredFunctions, "constant")
}

func TestSetContextVariableFromPath(t *testing.T) {
	ctx := buildContext("", nil)

	err := setContextVariableFromPath(ctx, "descriptor.foo.bar", cty.BoolVal(true))
	require.NoError(t, err)

	err = setContextVariableFromPath(ctx, "descriptor.foo.biz", cty.StringVal("Hello World"))
	require.NoError(t, err)

	err = setContextVariableFromPath(ctx, "descriptor.poo", cty.StringVal("Meh"))
	require.NoError(t, err)

	require.True(t, ctx.Variables["descriptor"].AsValueMap()["foo"].AsValueMap()["bar"].True())
	require.Equal(t, "Hello World", ctx.Variables["descriptor"].AsValueMap()["foo"].AsValueMap()["biz"].AsString())
	require.Equal(t, "Meh", ctx.Variables["descriptor"].AsValueMap()["poo"].AsString())
}

func TestSetContextVariableFromPathWithIndex(t *testing.T) {
	ctx := buildContext("", nil)

	err := setContextVariableFromPath(ctx, "descriptor.foo.bar", cty.ListVal([]cty.Value{cty.BoolVal(false), cty.BoolVal(false)}))
	require.NoError(t, err)

	err = setContextVariableFromPath(ctx, "descriptor.foo.bar[0]", cty.BoolVal(true))
	require.NoError(t, err)

	require.True(t, ctx.Variables["descriptor"].AsValueMap()["foo"].AsValueMap()["bar"].AsValueSlice()[0].True())
	require.False(t, ctx.Variables["descriptor"].AsValueMap()["foo"].AsValueMap()["bar"].AsValueSlice()[1].True())
}

func TestValidateDescriptorName(t *testing.T) {
	require.NoError(t, validateDescriptorName("gemini"))
	require.NoError(t, validateDescriptorName("gemini_0-18"))

	require.Error(t, validateDescriptorName("descriptor"))
	require.Error(t, validateDescriptorName("variable"))
	require.Error(t, validateDescriptorName("output"))
	require.Error(t, validateDescriptorName("repository"))
	require.Error(t, validateDescriptorName("meta"))
	require.Error(t, validateDescriptorName("123"))
	require.Error(t, validateDescriptorName("gem.ini"))
}
