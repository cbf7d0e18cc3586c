package shedconfig

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// createCtyFunctionFromGoFunc creates a cty interpolation function from a
// plain go function. Only string, bool, and basic integer parameters and
// return values are supported.
func createCtyFunctionFromGoFunc(f interface{}) (function.Function, error) {
	// get the parameters
	params := []function.Parameter{}

	rf := reflect.TypeOf(f)
	for i := 0; i < rf.NumIn(); i++ {
		fp := rf.In(i)

		switch fp.Kind() {
		case reflect.String:
			params = append(params, function.Parameter{
				Name:             fp.Name(),
				Type:             cty.String,
				AllowDynamicType: true,
			})
		case reflect.Bool:
			params = append(params, function.Parameter{
				Name:             fp.Name(),
				Type:             cty.Bool,
				AllowDynamicType: true,
			})
		case reflect.Int16:
			fallthrough
		case reflect.Int32:
			fallthrough
		case reflect.Int64:
			fallthrough
		case reflect.Int:
			params = append(params, function.Parameter{
				Name:             fp.Name(),
				Type:             cty.Number,
				AllowDynamicType: true,
			})
		default:
			return function.Function{}, fmt.Errorf("type %v is not a valid parameter type, only strings, bools, and basic numbers are supported", fp.Kind())
		}
	}

	if rf.NumOut() != 2 || !rf.Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
		return function.Function{}, fmt.Errorf("functions must return two values, the result and an error")
	}

	var outType function.TypeFunc
	outParam := rf.Out(0)
	switch outParam.Kind() {
	case reflect.String:
		outType = function.StaticReturnType(cty.String)
	case reflect.Bool:
		outType = function.StaticReturnType(cty.Bool)
	case reflect.Int16:
		fallthrough
	case reflect.Int32:
		fallthrough
	case reflect.Int64:
		fallthrough
	case reflect.Int:
		outType = function.StaticReturnType(cty.Number)
	default:
		return function.Function{}, fmt.Errorf("type %v is not a valid return type, only strings, bools, and basic numbers are supported", outParam.Kind())
	}

	return function.New(&function.Spec{
		Params: params,
		Type:   outType,
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {

			// create the params
			in := []reflect.Value{}
			for _, a := range args {
				switch a.Type() {
				case cty.String:
					in = append(in, reflect.ValueOf(a.AsString()))
				case cty.Bool:
					in = append(in, reflect.ValueOf(a.True()))
				case cty.Number:
					bf := a.AsBigFloat()
					val, _ := bf.Int64()
					in = append(in, reflect.ValueOf(int(val)))
				}
			}

			out := reflect.ValueOf(f).Call(in)

			if err, ok := out[1].Interface().(error); ok && err != nil {
				return cty.NullVal(retType), err
			}

			switch retType {
			case cty.String:
				return cty.StringVal(out[0].String()), nil
			case cty.Bool:
				return cty.BoolVal(out[0].Bool()), nil
			case cty.Number:
				return cty.NumberIntVal(out[0].Int()), nil
			}

			return cty.NullVal(retType), fmt.Errorf("unable to convert return value to a cty type")
		},
	}), nil
}
