package cmd

import (
	"fmt"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/contract"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/spf13/cobra"
)

var (
	encodeContract    string
	encodeABIFile     string
	encodeInteractive bool

	// picker is swapped out in tests.
	picker interface {
		PickItem(title string, items []ui.PickerItem) (string, error)
	} = ui.Picker{}
)

var encodeCmd = &cobra.Command{
	Use:   "encode <function> [args...]",
	Short: "Encode call data from a function and arguments",
	Long: `Build ABI-encoded call data. This is the reverse of decode.

With --contract or --abi the function is resolved against that interface:
a bare name picks the first overload taking as many arguments as given, a
full signature picks exactly. Without an interface the first argument must
be a full signature.

Examples:
  stablecoin encode "initV2(bool,address,uint256)" true 0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1 12
  stablecoin encode --contract FiatTokenV1 mint 0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1 50
  stablecoin encode --abi ./build/contracts/FiatTokenV1.json transfer -i 0xRecipient 1000000`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, funcArgs := args[0], args[1:]

		if encodeContract == "" && encodeABIFile == "" {
			if !strings.Contains(ref, "(") {
				return fmt.Errorf("%w: %q is not a signature; pass name(type1,type2) or --contract/--abi", contract.ErrMissingInterface, ref)
			}
			name, types, err := abicodec.ParseSignature(ref)
			if err != nil {
				return err
			}
			encoded, err := calldata.EncodeSignature(ref, funcArgs...)
			if err != nil {
				return fmt.Errorf("encoding failed: %w", err)
			}
			printEncoded(cmd, abicodec.Signature(name, types), abicodec.TypeNames(types), funcArgs, encoded)
			return nil
		}

		iface, err := loadInterface(encodeContract, encodeABIFile)
		if err != nil {
			return err
		}

		if encodeInteractive && !strings.Contains(ref, "(") {
			if overloads := iface.Overloads(ref); len(overloads) > 1 {
				picked, err := picker.PickItem("Overloads of "+ref, ui.OverloadItems(overloads))
				if err != nil {
					return err
				}
				if picked == "" {
					return fmt.Errorf("no overload selected")
				}
				ref = picked
			}
		}

		fn, err := iface.Function(ref, len(funcArgs))
		if err != nil {
			return err
		}
		data, err := calldata.EncodeFunction(fn, funcArgs...)
		if err != nil {
			return fmt.Errorf("encoding failed: %w", err)
		}
		printEncoded(cmd, fn.Signature(), abicodec.TypeNames(fn.Types), funcArgs, abicodec.Add0x(abicodec.ToHexString(data)))
		return nil
	},
}

func printEncoded(cmd *cobra.Command, sig string, types, args []string, encoded string) {
	pairs := [][2]string{
		{"Signature", sig},
		{"Selector", encoded[:10]},
	}
	for i, arg := range args {
		pairs = append(pairs, [2]string{fmt.Sprintf("Arg[%d] (%s)", i, types[i]), arg})
	}
	pairs = append(pairs,
		[2]string{"Calldata", ui.Val(encoded)},
		[2]string{"Bytes", fmt.Sprintf("%d", (len(encoded)-2)/2)},
	)
	fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Encoded Calldata", pairs))
}

func init() {
	encodeCmd.Flags().StringVar(&encodeContract, "contract", "", "contract name resolved in the artifacts directory or built-ins")
	encodeCmd.Flags().StringVar(&encodeABIFile, "abi", "", "ABI descriptor or artifact file")
	encodeCmd.Flags().BoolVarP(&encodeInteractive, "interactive", "i", false, "pick among overloads interactively")
}
