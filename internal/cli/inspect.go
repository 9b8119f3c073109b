package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/microact/internal/ir"
	"github.com/roach88/microact/internal/micro"
)

// InspectResult describes one wire action.
type InspectResult struct {
	Type    string    `json:"type"`
	Marker  ir.Marker `json:"marker"`
	IsMicro bool      `json:"is_micro"`
	Hash    string    `json:"hash,omitempty"`
	Wire    string    `json:"wire,omitempty"`
	// Skipped explains why Hash and Wire are empty.
	Skipped string `json:"skipped,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [action-json]",
		Short: "Report the micro marker of a wire action",
		Long: `Decode a wire action and report its micro marker.

The action is read from the argument, or from stdin when no argument is
given. The marker is "active" when meta.@@redux-micro-actions/micro is
truthy, "cleared" when it is present but falsy, and "absent" otherwise.

Examples:
  microact inspect '{"type":"TEST","meta":{"@@redux-micro-actions/micro":true}}'
  echo '{"type":"TEST"}' | microact inspect --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runInspect(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var input string
	if len(args) == 1 {
		input = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		input = string(data)
	}

	data := []byte(strings.TrimSpace(input))
	result, err := inspectWire(data)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid action", err)
	}
	opts.logger().Debug("inspected action", "type", result.Type, "marker", result.Marker)

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Type:     %s\n", result.Type)
	fmt.Fprintf(w, "Marker:   %s\n", result.Marker)
	fmt.Fprintf(w, "Micro:    %v\n", result.IsMicro)
	switch {
	case result.Skipped != "":
		fmt.Fprintf(w, "Hash:     skipped (%s)\n", result.Skipped)
	case formatter.Verbose:
		fmt.Fprintf(w, "Hash:     %s\n", result.Hash)
		fmt.Fprintf(w, "Wire:     %s\n", result.Wire)
	}
	return nil
}

// inspectWire reports the marker of any object-shaped action. Content that
// cannot be hashed only drops the hash.
func inspectWire(data []byte) (InspectResult, error) {
	a, decodeErr := ir.DecodeAction(data)
	if decodeErr == nil {
		result, err := inspectAction(a)
		if err == nil {
			return result, nil
		}
		decodeErr = err
	}

	actionType, marker, err := ir.PeekMarker(data)
	if err != nil {
		return InspectResult{}, decodeErr
	}
	return InspectResult{
		Type:    actionType,
		Marker:  marker,
		IsMicro: marker == ir.MarkerActive,
		Skipped: decodeErr.Error(),
	}, nil
}

func inspectAction(a *ir.Action) (InspectResult, error) {
	wire, err := ir.MarshalCanonical(a.Wire())
	if err != nil {
		return InspectResult{}, err
	}
	hash, err := ir.ActionHash(a)
	if err != nil {
		return InspectResult{}, err
	}
	return InspectResult{
		Type:    a.Type,
		Marker:  a.Micro,
		IsMicro: micro.IsMicro(a),
		Hash:    hash,
		Wire:    string(wire),
	}, nil
}
