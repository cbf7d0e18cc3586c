package convert

import (
	"github.com/toolshed-labs/shedconfig/types"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// GoToCtyValue converts a go type to a cty value which can be set on the
// HCL evaluation context. When the value is a Descriptor the metadata
// attributes are merged into the top level object so that references like
// descriptor.tool_dependency.gemini.meta.id resolve.
func GoToCtyValue(val interface{}) (cty.Value, error) {
	typ, err := gocty.ImpliedType(val)
	if err != nil {
		return cty.False, err
	}

	ctyVal, err := gocty.ToCtyValue(val, typ)
	if err != nil {
		return cty.False, err
	}

	if d, ok := val.(types.Descriptor); ok {
		typ, err := gocty.ImpliedType(d.Metadata())
		if err != nil {
			return cty.False, err
		}

		metaVal, err := gocty.ToCtyValue(d.Metadata(), typ)
		if err != nil {
			return cty.False, err
		}

		objMap := ctyVal.AsValueMap()
		metaMap := metaVal.AsValueMap()

		for k, v := range metaMap {
			objMap[k] = v
		}

		ctyVal = cty.ObjectVal(objMap)
	}

	return ctyVal, nil
}

// CtyToGo converts a cty value into the given go type
func CtyToGo(val cty.Value, target interface{}) error {
	return gocty.FromCtyValue(val, target)
}
