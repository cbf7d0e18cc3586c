package types

import (
	"fmt"
	"reflect"
)

type ErrTypeNotRegistered struct {
	Type string
}

func (e *ErrTypeNotRegistered) Error() string {
	return fmt.Sprintf("type %s, not registered", e.Type)
}

func NewTypeNotRegisteredError(t string) *ErrTypeNotRegistered {
	return &ErrTypeNotRegistered{Type: t}
}

type RegisteredTypes map[string]Descriptor

// DefaultTypes returns the built in descriptor types for the parser
func DefaultTypes() RegisteredTypes {
	return RegisteredTypes{
		TypeVariable:       &Variable{},
		TypeOutput:         &Output{},
		TypeRepository:     &Repository{},
		TypeRoot:           &Root{},
		TypeToolDependency: &ToolDependency{},
	}
}

// CreateDescriptor creates a new instance of a descriptor from one of the
// registered types.
func (r RegisteredTypes) CreateDescriptor(descriptorType, descriptorName string) (Descriptor, error) {
	// check that the type exists
	if t, ok := r[descriptorType]; ok {
		ptr := reflect.New(reflect.TypeOf(t).Elem())

		d := ptr.Interface().(Descriptor)
		d.Metadata().Name = descriptorName
		d.Metadata().Type = descriptorType
		d.Metadata().Properties = map[string]interface{}{}

		return d, nil
	}

	return nil, fmt.Errorf("unable to create descriptor: %s", NewTypeNotRegisteredError(descriptorType))
}
