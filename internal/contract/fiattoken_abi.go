package contract

import (
	"embed"
	"fmt"
)

// Built-in IDs.
const (
	BuiltinFiatToken   = "fiattoken"
	BuiltinFiatTokenV2 = "fiattoken-v2"
	BuiltinProxy       = "proxy"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// Function selectors of the proxy admin surface:
//
//	admin()                          → 0xf851a440
//	implementation()                 → 0x5c60da1b
//	upgradeTo(address)               → 0x3659cfe6
//	upgradeToAndCall(address,bytes)  → 0x4f1ef286
//	changeAdmin(address)             → 0x8f283970
func init() {
	for _, b := range []struct {
		id, file, desc string
	}{
		{BuiltinFiatToken, "FiatTokenV1", "FiatToken V1: mint, burn, pause, blacklist and minter allowances."},
		{BuiltinFiatTokenV2, "UpgradedFiatTokenNewFieldsTest", "FiatToken V1 plus initV2(bool,address,uint256) and the newBool/newAddress/newUint fields."},
		{BuiltinProxy, "FiatTokenProxy", "Transparent upgradeability proxy admin surface."},
	} {
		data, err := builtinFS.ReadFile("builtin/" + b.file + ".json")
		if err != nil {
			panic(fmt.Sprintf("embedded artifact %s: %v", b.file, err))
		}
		a, err := ParseArtifact(data, b.file)
		if err != nil {
			panic(fmt.Sprintf("embedded artifact %s: %v", b.file, err))
		}
		RegisterBuiltin(BuiltinKind{ID: b.id, Description: b.desc, Artifact: a})
	}
}
