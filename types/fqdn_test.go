package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFQRNDescriptor(t *testing.T) {
	f, err := ParseFQRN("descriptor.tool_dependency.gemini")
	require.NoError(t, err)

	require.Equal(t, "tool_dependency", f.Type)
	require.Equal(t, "gemini", f.Descriptor)
	require.Equal(t, "", f.Repository)
	require.Equal(t, "", f.Attribute)
}

func TestParseFQRNDescriptorWithAttribute(t *testing.T) {
	f, err := ParseFQRN("descriptor.tool_dependency.gemini.owner")
	require.NoError(t, err)

	require.Equal(t, "tool_dependency", f.Type)
	require.Equal(t, "gemini", f.Descriptor)
	require.Equal(t, "owner", f.Attribute)
}

func TestParseFQRNDescriptorWithNestedAttribute(t *testing.T) {
	f, err := ParseFQRN("descriptor.tool_dependency.gemini.packages.0.version")
	require.NoError(t, err)

	require.Equal(t, "tool_dependency", f.Type)
	require.Equal(t, "gemini", f.Descriptor)
	require.Equal(t, "packages.0.version", f.Attribute)
}

func TestParseFQRNOutput(t *testing.T) {
	f, err := ParseFQRN("output.repository_url")
	require.NoError(t, err)

	require.Equal(t, TypeOutput, f.Type)
	require.Equal(t, "repository_url", f.Descriptor)
}

func TestParseFQRNVariable(t *testing.T) {
	f, err := ParseFQRN("variable.owner")
	require.NoError(t, err)

	require.Equal(t, TypeVariable, f.Type)
	require.Equal(t, "owner", f.Descriptor)
}

func TestParseFQRNRepository(t *testing.T) {
	f, err := ParseFQRN("repository.bio")
	require.NoError(t, err)

	require.Equal(t, TypeRepository, f.Type)
	require.Equal(t, "bio", f.Descriptor)
	require.Equal(t, "", f.Repository)
}

func TestParseFQRNNestedRepository(t *testing.T) {
	f, err := ParseFQRN("repository.bio.tools")
	require.NoError(t, err)

	require.Equal(t, TypeRepository, f.Type)
	require.Equal(t, "tools", f.Descriptor)
	require.Equal(t, "bio", f.Repository)
}

func TestParseFQRNDescriptorInRepository(t *testing.T) {
	f, err := ParseFQRN("repository.bio.descriptor.tool_dependency.bedtools")
	require.NoError(t, err)

	require.Equal(t, "tool_dependency", f.Type)
	require.Equal(t, "bedtools", f.Descriptor)
	require.Equal(t, "bio", f.Repository)
}

func TestParseFQRNInvalidReturnsError(t *testing.T) {
	_, err := ParseFQRN("descriptor.gemini")
	require.Error(t, err)

	_, err = ParseFQRN("not_a_reference")
	require.Error(t, err)

	_, err = ParseFQRN("")
	require.Error(t, err)
}

func TestFQRNString(t *testing.T) {
	f := FQRN{Type: "tool_dependency", Descriptor: "gemini"}
	require.Equal(t, "descriptor.tool_dependency.gemini", f.String())

	f = FQRN{Type: "tool_dependency", Descriptor: "gemini", Attribute: "owner"}
	require.Equal(t, "descriptor.tool_dependency.gemini.owner", f.String())
	require.Equal(t, "descriptor.tool_dependency.gemini", f.StringWithoutAttribute())

	f = FQRN{Type: TypeOutput, Descriptor: "repository_url"}
	require.Equal(t, "output.repository_url", f.String())

	f = FQRN{Type: TypeRepository, Descriptor: "bio"}
	require.Equal(t, "repository.bio", f.String())

	f = FQRN{Type: "tool_dependency", Descriptor: "bedtools", Repository: "bio"}
	require.Equal(t, "repository.bio.descriptor.tool_dependency.bedtools", f.String())
}

func TestFQRNAppendParentRepository(t *testing.T) {
	f, err := ParseFQRN("descriptor.tool_dependency.bedtools")
	require.NoError(t, err)

	rel := f.AppendParentRepository("bio")
	require.Equal(t, "bio", rel.Repository)
	require.Equal(t, "repository.bio.descriptor.tool_dependency.bedtools", rel.String())

	// appending an empty parent is a no-op
	rel = f.AppendParentRepository("")
	require.Equal(t, "", rel.Repository)
}

func TestFQRNFromDescriptor(t *testing.T) {
	reg := DefaultTypes()

	d, err := reg.CreateDescriptor(TypeToolDependency, "gemini")
	require.NoError(t, err)

	f := FQRNFromDescriptor(d)
	require.Equal(t, "descriptor.tool_dependency.gemini", f.String())
}
