package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/leodido/structcli"
	"github.com/leodido/vintf"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
)

// Build metadata injected via ldflags (see .goreleaser.yaml).
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	root := &cobra.Command{
		Use:   "vintf",
		Short: "Vendor interface compatibility checking and assembly",
		Long: `vintf checks HAL manifests against compatibility matrices and assembles
partial documents into the effective ones installed on a device image.

It verifies HAL requirements, kernel configuration, sepolicy and AVB
versions. Use it for device bring-up, build-time gating, or OTA validation.`,
		SilenceUsage: true,
	}

	root.AddCommand(checkCmd())
	root.AddCommand(checkAllCmd())
	root.AddCommand(assembleCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// CheckOptions defines flags for the check subcommand.
type CheckOptions struct {
	Manifest string `flag:"manifest" flagshort:"m" flagdescr:"Path to the HAL manifest" flagrequired:"true"`
	Matrix   string `flag:"matrix" flagshort:"c" flagdescr:"Path to the compatibility matrix" flagrequired:"true"`
	JSON     bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func checkCmd() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check one manifest against one compatibility matrix",
		Long: `Check that a HAL manifest satisfies a compatibility matrix.
Exits with code 0 if compatible, 1 with a diagnostic naming every unmet
requirement otherwise.`,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			manifest, err := readManifest(opts.Manifest)
			if err != nil {
				return err
			}
			matrix, err := readMatrix(opts.Matrix)
			if err != nil {
				return err
			}

			err = manifest.CheckCompatibility(matrix)
			return reportCompat(err, opts.JSON)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CheckAllOptions defines flags for the checkall subcommand.
type CheckAllOptions struct {
	Root    string `flag:"root" flagdescr:"Treat this directory as the device image root"`
	Runtime bool   `flag:"runtime" flagshort:"r" flagdescr:"Also check the running kernel and boot properties"`
	JSON    bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckAllOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func checkAllCmd() *cobra.Command {
	opts := &CheckAllOptions{}

	cmd := &cobra.Command{
		Use:   "checkall",
		Short: "Check every document pair on a device image",
		Long: `Check the device manifest against the framework matrix, the framework
manifest against the device matrix and, with --runtime, the running system
against the framework matrix. Documents are read from their standard
locations, optionally under --root.`,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			var objOpts []vintf.ObjectOption
			if opts.Root != "" {
				objOpts = append(objOpts, vintf.WithFileSystem(vintf.RootedFileSystem{Root: opts.Root}))
			}
			obj := vintf.NewObject(objOpts...)

			err := obj.CheckCompatibility(opts.Runtime)
			return reportCompat(err, opts.JSON)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// emitModeIds maps serialization modes to their flag spellings.
var emitModeIds = map[vintf.SerializeFlags][]string{
	vintf.SerializeEverything: {"everything"},
	vintf.SerializeHalsOnly:   {"hals-only"},
	vintf.SerializeNoHals:     {"no-hals"},
}

// AssembleOptions defines flags for the assemble subcommand.
type AssembleOptions struct {
	Inputs  []string             `flag:"input" flagshort:"i" flagdescr:"Input document (repeatable)" flagrequired:"true"`
	Output  string               `flag:"output" flagshort:"o" flagdescr:"Output file (default stdout)"`
	Matrix  bool                 `flag:"matrix" flagdescr:"For manifest inputs, emit the compatible matrix skeleton"`
	Check   string               `flag:"check" flagshort:"c" flagdescr:"Verify the result against this counterpart document"`
	Kernels []string             `flag:"kernel" flagdescr:"Kernel requirements as <version>:<android-base.cfg>[:<android-base-feature.cfg>...] (repeatable)"`
	Emit    vintf.SerializeFlags `flag:"emit" flagcustom:"true" flagdescr:"Which parts to emit: everything, hals-only, no-hals"`
}

func (o *AssembleOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *AssembleOptions) DefineEmit(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*vintf.SerializeFlags)
	return enumflag.New(fieldPtr, "mode", emitModeIds, enumflag.EnumCaseInsensitive), descr
}

func (o *AssembleOptions) DecodeEmit(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	for mode, ids := range emitModeIds {
		for _, id := range ids {
			if strings.EqualFold(id, s) {
				return mode, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown emit mode: %q", s)
}

func assembleCmd() *cobra.Command {
	opts := &AssembleOptions{}

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Merge partial documents into one effective document",
		Long: `Merge manifest fragments or per-level compatibility matrices into the
effective document installed on a device image. The input kind is detected
from the document root element.

Build flags (BOARD_SEPOLICY_VERS, POLICYVERS, FRAMEWORK_VBMETA_VERSION,
PRODUCT_SHIPPING_API_LEVEL, PRODUCT_ENFORCE_VINTF_MANIFEST) are read from
the environment.`,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			asmOpts := []vintf.AssembleOption{
				vintf.AssembleWithSerializeFlags(opts.Emit),
				vintf.AssembleWithLogger(os.Stderr),
			}
			if opts.Matrix {
				asmOpts = append(asmOpts, vintf.AssembleWithOutputMatrix())
			}
			if opts.Check != "" {
				asmOpts = append(asmOpts, vintf.AssembleWithCheckFile(opts.Check))
			}
			for _, arg := range opts.Kernels {
				minLts, paths, err := parseKernelArg(arg)
				if err != nil {
					return err
				}
				asmOpts = append(asmOpts, vintf.AssembleWithKernel(minLts, paths...))
			}

			out, err := vintf.NewAssembler(asmOpts...).Assemble(opts.Inputs)
			if err != nil {
				return err
			}

			if opts.Output == "" {
				_, err = os.Stdout.Write(out)
				return err
			}
			return os.WriteFile(opts.Output, out, 0o644)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// parseKernelArg splits "<version>:<path>[:<path>...]".
func parseKernelArg(arg string) (vintf.KernelVersion, []string, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 {
		return vintf.KernelVersion{}, nil, fmt.Errorf("invalid --kernel %q: expected <version>:<config>[:<config>...]", arg)
	}
	minLts, err := vintf.ParseKernelVersion(parts[0])
	if err != nil {
		return vintf.KernelVersion{}, nil, fmt.Errorf("invalid --kernel %q: %w", arg, err)
	}
	return minLts, parts[1:], nil
}

// ConfigOptions defines flags for the config subcommand.
type ConfigOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *ConfigOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func configCmd() *cobra.Command {
	opts := &ConfigOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the observed system state",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			ri, err := vintf.FetchRuntimeInfo(&vintf.EnvPropertyFetcher{})
			if err != nil {
				return err
			}

			if opts.JSON {
				return printJSON(map[string]any{
					"kernelVersion":         ri.KernelVersion.String(),
					"kernelRelease":         ri.KernelRelease,
					"kernelSepolicyVersion": ri.KernelSepolicyVersion,
					"vbmetaAvbVersion":      ri.BootVbmetaAvbVersion.String(),
					"configs":               ri.KernelConfigs,
				})
			}

			fmt.Print(ri)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool version",
		RunE: func(c *cobra.Command, args []string) error {
			if version != "" {
				fmt.Printf("vintf %s", version)
				if commit != "" {
					fmt.Printf(" (%s)", commit)
				}
				if date != "" {
					fmt.Printf(" built %s", date)
				}
				fmt.Println()
			} else {
				fmt.Println("vintf (dev)")
			}
			return nil
		},
	}
}

func readManifest(path string) (*vintf.HalManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := vintf.UnmarshalHalManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func readMatrix(path string) (*vintf.CompatibilityMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cm, err := vintf.UnmarshalCompatibilityMatrix(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cm, nil
}

// reportCompat renders a compatibility verdict and exits non-zero on an
// incompatibility; other errors propagate as-is.
func reportCompat(err error, asJSON bool) error {
	if err == nil {
		if asJSON {
			return printJSON(map[string]any{"compatible": true})
		}
		fmt.Println("OK: compatible")
		return nil
	}

	var compat *vintf.CompatError
	if errors.As(err, &compat) {
		if asJSON {
			if jerr := printJSON(map[string]any{
				"compatible": false,
				"diagnostic": err.Error(),
			}); jerr != nil {
				return jerr
			}
		} else {
			fmt.Fprintf(os.Stderr, "FAIL: %s\n", err)
		}
		os.Exit(1)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
