package main

import "github.com/circlefin/stablecoin-evm-sub003/cmd"

func main() {
	cmd.Execute()
}
