// This program performs administrative tasks against the ledger storage.
package main

import (
	"os"

	"github.com/leakwatch/blockchain/app/tooling/admin/cmd"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	if err := cmd.NewRoot(build).Execute(); err != nil {
		os.Exit(1)
	}
}
