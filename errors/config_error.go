package errors

import "strings"

// ConfigError collects the errors that were encountered while reading and
// processing a set of descriptor files
type ConfigError struct {
	// ParseErrors is a list of errors that were encountered while reading
	// descriptors from the text files
	ParseErrors []error

	// ProcessErrors is a list of errors that were encountered while
	// processing the config, this includes validation failures and errors
	// returned from the process callbacks
	ProcessErrors []error
}

func NewConfigError() *ConfigError {
	return &ConfigError{
		ParseErrors:   []error{},
		ProcessErrors: []error{},
	}
}

// AppendParseError adds a new parse error to the list of errors
func (c *ConfigError) AppendParseError(err error) {
	c.ParseErrors = append(c.ParseErrors, err)
}

// AppendProcessError adds a new process error to the list of errors
func (c *ConfigError) AppendProcessError(err error) {
	c.ProcessErrors = append(c.ProcessErrors, err)
}

// ContainsErrors returns true when any parse or process errors have been
// collected
func (c *ConfigError) ContainsErrors() bool {
	return len(c.ParseErrors) > 0 || len(c.ProcessErrors) > 0
}

// Error pretty prints the error message as a string
func (c *ConfigError) Error() string {
	err := strings.Builder{}

	for _, e := range c.ParseErrors {
		err.WriteString(e.Error() + "\n")
	}

	for _, e := range c.ProcessErrors {
		err.WriteString(e.Error() + "\n")
	}

	return strings.TrimSuffix(err.String(), "\n")
}
