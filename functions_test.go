package shedconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestCreateCtyFunctionFromGoFunc(t *testing.T) {
	myfunc := func(a, b int) (int, error) {
		return a + b, nil
	}

	ctyFunc, err := createCtyFunctionFromGoFunc(myfunc)
	require.NoError(t, err)

	val, err := ctyFunc.Call([]cty.Value{cty.NumberIntVal(2), cty.NumberIntVal(3)})
	require.NoError(t, err)

	i, _ := val.AsBigFloat().Int64()
	require.Equal(t, int64(5), i)
}

func TestCreateCtyFunctionWithStringParams(t *testing.T) {
	myfunc := func(in string) (string, error) {
		return in + "!", nil
	}

	ctyFunc, err := createCtyFunctionFromGoFunc(myfunc)
	require.NoError(t, err)

	val, err := ctyFunc.Call([]cty.Value{cty.StringVal("gemini")})
	require.NoError(t, err)
	require.Equal(t, "gemini!", val.AsString())
}

func TestCreateCtyFunctionWithoutErrorReturnFails(t *testing.T) {
	myfunc := func(in string) string {
		return in
	}

	_, err := createCtyFunctionFromGoFunc(myfunc)
	require.Error(t, err)
}

func TestDefaultFunctionEnv(t *testing.T) {
	t.Setenv("SHED_TEST_ENV", "test_value")

	funcs := getDefaultFunctions(".")

	val, err := funcs["env"].Call([]cty.Value{cty.StringVal("SHED_TEST_ENV")})
	require.NoError(t, err)
	require.Equal(t, "test_value", val.AsString())
}

func TestDefaultFunctionFile(t *testing.T) {
	f, err := filepath.Abs("./test_fixtures/simple/gemini.hcl")
	require.NoError(t, err)

	funcs := getDefaultFunctions(f)

	val, err := funcs["file"].Call([]cty.Value{cty.StringVal("description.md")})
	require.NoError(t, err)
	require.Contains(t, val.AsString(), "GEnome MINIng")
}

func TestDefaultFunctionFileNotFoundReturnsError(t *testing.T) {
	funcs := getDefaultFunctions(".")

	_, err := funcs["file"].Call([]cty.Value{cty.StringVal("nothere.md")})
	require.Error(t, err)
}

func TestDefaultFunctionTemplateFile(t *testing.T) {
	dir := t.TempDir()
	tf := filepath.Join(dir, "template.tmpl")

	err := os.WriteFile(tf, []byte("{{name}} maintained by {{quote owner}}"), 0644)
	require.NoError(t, err)

	funcs := getDefaultFunctions(tf)

	val, err := funcs["template_file"].Call([]cty.Value{
		cty.StringVal("template.tmpl"),
		cty.ObjectVal(map[string]cty.Value{
			"name":  cty.StringVal("gemini"),
			"owner": cty.StringVal("iuc"),
		}),
	})
	require.NoError(t, err)
	require.Equal(t, `gemini maintained by "iuc"`, val.AsString())
}

func TestDefaultFunctionLen(t *testing.T) {
	funcs := getDefaultFunctions(".")

	val, err := funcs["len"].Call([]cty.Value{cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")})})
	require.NoError(t, err)

	i, _ := val.AsBigFloat().Int64()
	require.Equal(t, int64(2), i)
}

func TestDefaultFunctionTrim(t *testing.T) {
	funcs := getDefaultFunctions(".")

	val, err := funcs["trim"].Call([]cty.Value{cty.StringVal("  abc  ")})
	require.NoError(t, err)
	require.Equal(t, "abc", val.AsString())
}
