package cmd

import (
	"fmt"

	"github.com/circlefin/stablecoin-evm-sub003/internal/calldata"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/spf13/cobra"
)

var (
	decodeContract string
	decodeABIFile  string
	decodeOutDir   string
	decodeOutput   string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <calldata>",
	Short: "Decode call data into the function and its typed arguments",
	Long: `Decode hex call data (with or without 0x) against a contract
interface. The interface comes from --contract, looked up as
<artifactsDir>/<Name>.json and then among the built-ins, or from an
explicit --abi descriptor.

With --out-dir the result is also written as JSON to
<out-dir>/<output>.json ({name, types, inputs}).

Examples:
  stablecoin decode --contract UpgradedFiatTokenNewFieldsTest 0xd76c43c6...
  stablecoin decode --abi ./FiatTokenV1.json 0xa9059cbb... --out-dir ./decoded --output transfer`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		iface, err := loadInterface(decodeContract, decodeABIFile)
		if err != nil {
			return err
		}

		call, err := calldata.NewDecoder(iface).Decode(args[0])
		if err != nil {
			return err
		}

		pairs := [][2]string{
			{"Function", ui.Val(call.Signature())},
		}
		for i, in := range call.Inputs {
			pairs = append(pairs, [2]string{fmt.Sprintf("Arg[%d] (%s)", i, call.Types[i]), in})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Decoded Calldata", pairs))

		if decodeOutDir == "" {
			return nil
		}
		name := decodeOutput
		if name == "" {
			name = call.Name
		}
		path, err := calldata.WriteDecoded(decodeOutDir, name, call)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("written to "+path))
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeContract, "contract", "", "contract name resolved in the artifacts directory or built-ins")
	decodeCmd.Flags().StringVar(&decodeABIFile, "abi", "", "ABI descriptor or artifact file")
	decodeCmd.Flags().StringVar(&decodeOutDir, "out-dir", "", "write the decoded call as JSON into this directory")
	decodeCmd.Flags().StringVar(&decodeOutput, "output", "", "output file name without .json (default: function name)")
}
