package cmd

import (
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/spf13/cobra"
)

var selectorContract string

var selectorCmd = &cobra.Command{
	Use:   "selector <signature-or-selector>",
	Short: "Compute or look up a 4-byte function selector",
	Long: `Compute a 4-byte function selector from a signature, or look up a
selector among the built-in FiatToken interfaces (and --contract).

Parameter names and spaces are ignored when computing.

Examples:
  stablecoin selector "transfer(address,uint256)"           # → 0xa9059cbb
  stablecoin selector "initV2(bool _b, address _a, uint256 _u)"
  stablecoin selector 0xd76c43c6                            # → initV2(bool,address,uint256)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		out := cmd.OutOrStdout()

		if abicodec.Has0xPrefix(input) {
			fn, source, err := lookupSelector(input, selectorContract)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.KeyValueBlock("Selector Lookup", [][2]string{
				{"Selector", input},
				{"Function", ui.Val(fn.Signature())},
				{"Interface", source},
			}))
			return nil
		}

		name, types, err := abicodec.ParseSignature(input)
		if err != nil {
			return err
		}
		sig := abicodec.Signature(name, types)
		sel := abicodec.Selector(name, types)

		fmt.Fprintln(out, ui.KeyValueBlock("Function Selector", [][2]string{
			{"Signature", sig},
			{"Selector", ui.Val(abicodec.Add0x(abicodec.ToHexString(sel[:])))},
			{"Full Hash", abicodec.Add0x(abicodec.ToHexString(abicodec.Keccak256([]byte(sig))))},
		}))
		return nil
	},
}

// lookupSelector finds the function a selector belongs to. An explicit
// contract is searched first, then every built-in.
func lookupSelector(input, contractName string) (*contract.FunctionSignature, string, error) {
	raw, err := calldata.ParseHex(input)
	if err != nil {
		return nil, "", err
	}
	if len(raw) != 4 {
		return nil, "", fmt.Errorf("%w: selector must be 4 bytes, got %d", abicodec.ErrMalformedInput, len(raw))
	}
	var sel [4]byte
	copy(sel[:], raw)

	if contractName != "" {
		iface, err := loadInterface(contractName, "")
		if err != nil {
			return nil, "", err
		}
		if fn, err := iface.FunctionBySelector(sel); err == nil {
			return fn, iface.Name, nil
		}
	}
	for _, b := range contract.AllBuiltins() {
		iface, err := b.Artifact.Interface()
		if err != nil {
			return nil, "", err
		}
		if fn, err := iface.FunctionBySelector(sel); err == nil {
			return fn, iface.Name, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", contract.ErrUnknownSelector, input)
}

// loadInterface resolves a contract name or descriptor file against the
// configured artifacts directory.
func loadInterface(contractName, descriptor string) (*contract.Interface, error) {
	return contract.LoadInterface(contract.Source{
		ArtifactsDir:   cfg.ArtifactsDir,
		ContractName:   contractName,
		DescriptorPath: descriptor,
	})
}

func init() {
	selectorCmd.Flags().StringVar(&selectorContract, "contract", "", "also search this contract's artifact")
}
