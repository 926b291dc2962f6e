package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/circlefin/stablecoin-evm-sub003/internal/abicodec"
	"github.com/circlefin/stablecoin-evm-sub003/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// errInvalidAddress is returned for address arguments and flags that are
// not 20-byte hex or carry a wrong EIP-55 checksum.
var errInvalidAddress = errors.New("invalid address")

type checksumState int

const (
	checksumValid checksumState = iota
	checksumAbsent
	checksumMismatch
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <address>",
	Short: "Validate or convert an address to EIP-55 checksum format",
	Long: `Convert an address to its EIP-55 checksummed form and report whether
the input was already correctly checksummed. Every command that takes an
address applies the same check before touching the network.

Examples:
  stablecoin checksum 0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1
  stablecoin checksum 0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.TrimSpace(args[0])
		if !common.IsHexAddress(input) {
			return fmt.Errorf("%w: %q is not 20 bytes of hex", errInvalidAddress, input)
		}
		checksummed := common.HexToAddress(input).Hex()

		pairs := [][2]string{
			{"Input", input},
			{"Checksummed", ui.Addr(checksummed)},
		}
		switch checksumOf(input) {
		case checksumValid:
			pairs = append(pairs, [2]string{"Valid", ui.Success("address is correctly checksummed")})
		case checksumAbsent:
			pairs = append(pairs, [2]string{"Valid", ui.Warn("valid address but not checksummed")})
		default:
			pairs = append(pairs, [2]string{"Valid", ui.Err("checksum mismatch")})
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("EIP-55 Checksum", pairs))
		return nil
	},
}

// checksumOf classifies a valid hex address. Single-case input carries no
// checksum.
func checksumOf(input string) checksumState {
	body := abicodec.Strip0x(input)
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return checksumAbsent
	}
	if body == abicodec.Strip0x(common.HexToAddress(input).Hex()) {
		return checksumValid
	}
	return checksumMismatch
}

// parseAddress validates an address argument named name.
func parseAddress(name, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w for %s: %q", errInvalidAddress, name, input)
	}
	if checksumOf(input) == checksumMismatch {
		return common.Address{}, fmt.Errorf("%w for %s: %q has a bad EIP-55 checksum", errInvalidAddress, name, input)
	}
	return common.HexToAddress(input), nil
}
