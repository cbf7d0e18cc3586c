package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	shedconfig "github.com/toolshed-labs/shedconfig"
	sherrors "github.com/toolshed-labs/shedconfig/errors"
	"github.com/toolshed-labs/shedconfig/logger"
	"github.com/toolshed-labs/shedconfig/registry"
	"github.com/toolshed-labs/shedconfig/types"
)

var (
	variables    []string
	variableFile []string
	registryHost string
	token        string
	version      string
)

func main() {
	log := logger.NewStdOutLogger()

	rootCmd := &cobra.Command{
		Use:   "shedconfig",
		Short: "Parse, validate, and resolve tool dependency descriptors",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Parse and validate the descriptors at the given file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parse(args[0], log)
			if err != nil {
				printConfigError(err)
				return fmt.Errorf("validation failed")
			}

			tools, _ := c.FindDescriptorsByType(types.TypeToolDependency)
			log.Info("configuration is valid", "descriptors", c.DescriptorCount(), "tool_dependencies", len(tools))

			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [path] [fqrn]",
		Short: "Print the processed descriptor with the given fully qualified name as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parse(args[0], log)
			if err != nil {
				printConfigError(err)
				return fmt.Errorf("validation failed")
			}

			d, err := c.FindDescriptor(args[1])
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(d, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(out))
			return nil
		},
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch [source]",
		Short: "Fetch a remote descriptor repository into the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := shedconfig.DefaultOptions()

			dest, err := shedconfig.NewGoGetter().Get(args[0], o.RepositoryCache, true)
			if err != nil {
				return err
			}

			log.Info("fetched repository", "source", args[0], "path", dest)
			return nil
		},
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve [owner/name]",
		Short: "Resolve a published descriptor record from a shed registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := strings.SplitN(args[0], "/", 2)
			if len(parts) != 2 {
				return fmt.Errorf("descriptors should be referenced as 'owner/name', got %s", args[0])
			}

			r, err := registry.New(registryHost, token)
			if err != nil {
				return err
			}

			versions, err := r.GetDescriptorVersions(parts[0], parts[1])
			if err != nil {
				return err
			}

			resolved, err := registry.ResolveVersion(versions, version)
			if err != nil {
				return err
			}

			log.Debug("resolved descriptor version", "descriptor", args[0], "version", resolved)

			d, err := r.GetDescriptor(parts[0], parts[1], resolved)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(d, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(out))
			return nil
		},
	}

	resolveCmd.Flags().StringVar(&registryHost, "registry", "registry.toolshed.dev", "host of the shed registry")
	resolveCmd.Flags().StringVar(&token, "token", "", "bearer token used to authenticate with the registry")
	resolveCmd.Flags().StringVar(&version, "version", "", "semantic version constraint, i.e. '>= 0.18'")

	for _, cmd := range []*cobra.Command{validateCmd, showCmd} {
		cmd.Flags().StringSliceVar(&variables, "var", nil, "variable to set in the form 'name=value'")
		cmd.Flags().StringSliceVar(&variableFile, "vars-file", nil, "file containing variable values")
	}

	rootCmd.AddCommand(validateCmd, showCmd, fetchCmd, resolveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parse(path string, log logger.Logger) (*shedconfig.Config, error) {
	o := shedconfig.DefaultOptions()
	o.Logger = log
	o.VariablesFiles = variableFile
	o.Variables = map[string]string{}

	for _, v := range variables {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("variables should be set in the form 'name=value', got %s", v)
		}

		o.Variables[parts[0]] = parts[1]
	}

	p := shedconfig.NewParser(o)

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %s", path, err)
	}

	if fi.IsDir() {
		return p.ParseDirectory(path)
	}

	return p.ParseFile(path)
}

func printConfigError(err error) {
	ce, ok := err.(*sherrors.ConfigError)
	if !ok {
		fmt.Fprintln(os.Stderr, err.Error())
		return
	}

	for _, e := range ce.ParseErrors {
		fmt.Fprintln(os.Stderr, e.Error())
	}

	for _, e := range ce.ProcessErrors {
		fmt.Fprintln(os.Stderr, e.Error())
	}
}
