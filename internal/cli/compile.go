package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/microact/internal/compiler"
	"github.com/roach88/microact/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled action declarations in type order.
type CompilationResult struct {
	Actions []*ir.ActionSpec `json:"actions"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <catalog-dir>",
		Short: "Compile an action catalog to canonical JSON",
		Long: `Compile the CUE action catalog in a directory to canonical JSON.

The output lists every declared action with its micro flag and payload
field types, sorted by type. Keys are sorted and the encoding is stable, so
the file can be checked in and diffed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, catalogDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cat, problems, err := loadCatalog(catalogDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", cat.FileCount, catalogDir)

	if len(problems) > 0 {
		_ = formatter.Error(problems[0].Code, problems[0].Message, problems)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(problems)))
	}

	result := &CompilationResult{Actions: make([]*ir.ActionSpec, 0, cat.Len())}
	for _, t := range cat.Types() {
		spec, _ := cat.Lookup(t)
		formatter.VerboseLog("Compiled action: %s", t)
		result.Actions = append(result.Actions, spec)
	}

	if opts.Output != "" {
		data, err := canonicalCatalog(result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode catalog", err)
		}
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	micro := 0
	for _, spec := range result.Actions {
		if spec.Micro {
			micro++
		}
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d action(s), %d micro\n\n", len(result.Actions), micro)
	for _, spec := range result.Actions {
		flag := ""
		if spec.Micro {
			flag = " (micro)"
		}
		fmt.Fprintf(formatter.Writer, "  %s%s: %d payload field(s)\n", spec.Type, flag, len(spec.Payload))
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical catalog to %s\n", opts.Output)
	}
	return nil
}

// canonicalCatalog encodes the result with sorted keys, omitting empty
// descriptions and payloads.
func canonicalCatalog(result *CompilationResult) ([]byte, error) {
	actions := make([]any, 0, len(result.Actions))
	for _, spec := range result.Actions {
		entry := map[string]any{
			"type":  spec.Type,
			"micro": spec.Micro,
		}
		if spec.Description != "" {
			entry["description"] = spec.Description
		}
		if len(spec.Payload) > 0 {
			payload := make(map[string]any, len(spec.Payload))
			for name, typ := range spec.Payload {
				payload[name] = typ
			}
			entry["payload"] = payload
		}
		actions = append(actions, entry)
	}
	return ir.MarshalCanonical(map[string]any{"actions": actions})
}

// compileCatalog is the --catalog flag shared by run, test and replay.
func compileCatalog(dir string) (*compiler.Catalog, error) {
	if dir == "" {
		return nil, nil
	}
	cat, problems, err := loadCatalog(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	if len(problems) > 0 {
		return nil, WrapExitError(ExitCommandError, "invalid catalog", problems[0])
	}
	return cat, nil
}
