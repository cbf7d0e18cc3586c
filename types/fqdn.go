package types

import (
	"fmt"
	"regexp"
	"strings"
)

// FQRN is the fully qualified name of a descriptor
type FQRN struct {
	// Name of the repository the descriptor was loaded from
	Repository string
	// Type of the descriptor
	Type string
	// Descriptor name
	Descriptor string
	// Attribute of the descriptor
	Attribute string
}

const fqrnFormatMsg = "FQRNs must be formatted as variable.name, output.name, " +
	"descriptor.type.name, repository.repo1.repo2, or repository.repo1.descriptor.type.name"

// ParseFQRN parses a descriptor reference and returns its individual
// components
// e.g:
//
// get the "descriptor" of type tool_dependency called gemini defined at the
// top level, including an "attribute"
// // descriptor.tool_dependency.gemini.owner
//
// get the "descriptor" of type tool_dependency called gemini
// // descriptor.tool_dependency.gemini
//
// get the "output" called gemini_url
// // output.gemini_url
//
// get the descriptor gemini loaded from the "repository" iuc
// // repository.iuc.descriptor.tool_dependency.gemini
//
// get the "repository" iuc itself
// // repository.iuc
func ParseFQRN(fqrn string) (*FQRN, error) {
	repositoryName := ""
	typeName := ""
	descriptorName := ""
	attribute := ""

	r := regexp.MustCompile(`^(repository.(?P<repositories>.*)\.)?(?:(?P<kind>(descriptor|output|variable))\.(?P<attributes>(.*)))|(?P<onlyrepositories>.*)`)
	match := r.FindStringSubmatch(fqrn)
	results := map[string]string{}
	for i, name := range match {
		results[r.SubexpNames()[i]] = name
	}

	if len(results) < 2 {
		return nil, fmt.Errorf("%s. The fqrn: %s, does not contain a descriptor type", fqrnFormatMsg, fqrn)
	}

	switch results["kind"] {
	case "descriptor":
		descriptorParts := strings.Split(results["attributes"], ".")
		if len(descriptorParts) < 2 {
			return nil, fmt.Errorf("%s. The fqrn: %s, does not contain a descriptor type", fqrnFormatMsg, fqrn)
		}

		typeName = descriptorParts[0]
		descriptorName = descriptorParts[1]
		attribute = strings.Join(descriptorParts[2:], ".")
		repositoryName = results["repositories"]

	case "output":
		outputParts := strings.Split(results["attributes"], ".")
		if len(outputParts) != 1 {
			return nil, fmt.Errorf("%s. The fqrn: %s, is not a valid output reference", fqrnFormatMsg, fqrn)
		}

		typeName = TypeOutput
		descriptorName = outputParts[0]
		repositoryName = results["repositories"]

	case "variable":
		varParts := strings.Split(results["attributes"], ".")
		if len(varParts) != 1 {
			return nil, fmt.Errorf("%s. The fqrn: %s, is not a valid variable reference", fqrnFormatMsg, fqrn)
		}

		typeName = TypeVariable
		descriptorName = varParts[0]
		repositoryName = results["repositories"]

	default:
		if results["onlyrepositories"] == "" || !strings.HasPrefix(results["onlyrepositories"], "repository.") {
			return nil, fmt.Errorf("%s. The fqrn: %s, does not contain a descriptor type", fqrnFormatMsg, fqrn)
		}

		// repository.repo1.repo2
		repositories := strings.Split(results["onlyrepositories"], ".")

		if len(repositories) == 2 {
			descriptorName = repositories[1]
		} else {
			repositoryName = strings.Join(repositories[1:len(repositories)-1], ".")
			descriptorName = repositories[len(repositories)-1]
		}

		typeName = TypeRepository
	}

	return &FQRN{
		Repository: repositoryName,
		Type:       typeName,
		Descriptor: descriptorName,
		Attribute:  attribute,
	}, nil
}

// AppendParentRepository creates a new FQRN by adding the parent repository
// to the reference.
func (f *FQRN) AppendParentRepository(parent string) FQRN {
	newFQRN := FQRN{}

	newFQRN.Repository = f.Repository
	if parent != "" {
		newFQRN.Repository = fmt.Sprintf("%s.%s", parent, f.Repository)
		newFQRN.Repository = strings.TrimSuffix(newFQRN.Repository, ".")
	}

	newFQRN.Descriptor = f.Descriptor
	newFQRN.Type = f.Type
	newFQRN.Attribute = f.Attribute

	return newFQRN
}

// FQRNFromDescriptor returns the FQRN for the given Descriptor
func FQRNFromDescriptor(d Descriptor) *FQRN {
	return &FQRN{
		Repository: d.Metadata().Repository,
		Descriptor: d.Metadata().Name,
		Type:       d.Metadata().Type,
	}
}

// StringWithoutAttribute returns the fqrn with any attribute parts removed
func (f FQRN) StringWithoutAttribute() string {
	noAttr := f
	noAttr.Attribute = ""

	return noAttr.String()
}

func (f FQRN) String() string {
	repositoryPart := ""
	if f.Repository != "" {
		repositoryPart = fmt.Sprintf("repository.%s.", f.Repository)
	}

	attrPart := ""
	if f.Attribute != "" {
		attrPart = fmt.Sprintf(".%s", f.Attribute)
	}

	if f.Type == TypeOutput || f.Type == TypeVariable {
		return fmt.Sprintf("%s%s.%s", repositoryPart, f.Type, f.Descriptor)
	}

	if f.Type == TypeRepository {
		if f.Repository == "" {
			return fmt.Sprintf("repository.%s", f.Descriptor)
		}

		return fmt.Sprintf("%s%s", repositoryPart, f.Descriptor)
	}

	return fmt.Sprintf("%sdescriptor.%s.%s%s", repositoryPart, f.Type, f.Descriptor, attrPart)
}
