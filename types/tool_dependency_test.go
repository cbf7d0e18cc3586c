package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validToolDependency() *ToolDependency {
	td := &ToolDependency{
		Owner:               "iuc",
		Description:         "GEMINI: a flexible framework for exploring genome variation",
		Categories:          []string{"Sequence Analysis", "Variant Analysis"},
		RemoteRepositoryURL: "https://github.com/arq5x/gemini",
		Packages: []Package{
			{Name: "gemini", Version: "0.18.1", Source: "https://github.com/arq5x/gemini/archive/v0.18.1.tar.gz"},
		},
	}

	td.Meta.Name = "gemini"
	td.Meta.Type = TypeToolDependency

	return td
}

func TestToolDependencyValidates(t *testing.T) {
	td := validToolDependency()

	require.NoError(t, td.Validate())
}

func TestToolDependencyValidateRequiresSentinelType(t *testing.T) {
	td := validToolDependency()
	td.Meta.Type = "container"

	err := td.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), TypeToolDependency)
}

func TestToolDependencyValidateRequiresName(t *testing.T) {
	td := validToolDependency()
	td.Meta.Name = "  "

	require.Error(t, td.Validate())
}

func TestToolDependencyValidateRequiresOwner(t *testing.T) {
	td := validToolDependency()
	td.Owner = ""

	err := td.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "owner")
}

func TestToolDependencyValidateRequiresURL(t *testing.T) {
	td := validToolDependency()
	td.RemoteRepositoryURL = ""

	err := td.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "remote_repository_url")
}

func TestToolDependencyValidateRejectsInvalidURL(t *testing.T) {
	td := validToolDependency()

	for _, u := range []string{"not a url", "github.com/arq5x/gemini", "https://"} {
		td.RemoteRepositoryURL = u
		require.Error(t, td.Validate(), "url %s should not validate", u)
	}
}

func TestToolDependencyValidateRejectsEmptyCategory(t *testing.T) {
	td := validToolDependency()
	td.Categories = []string{"Sequence Analysis", ""}

	err := td.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "category")
}

func TestToolDependencyValidateRejectsUnnamedPackage(t *testing.T) {
	td := validToolDependency()
	td.Packages = append(td.Packages, Package{Version: "1.0.0"})

	require.Error(t, td.Validate())
}

func TestToolDependencyValidateRejectsInvalidPackageVersion(t *testing.T) {
	td := validToolDependency()
	td.Packages[0].Version = "latest-ish"

	err := td.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid version")
}
