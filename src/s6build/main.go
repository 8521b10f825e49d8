// s6build is the firmware build orchestrator for the EEBBK s6
// platform. It drives workspace setup, submodule updates, and platform
// builds through the external firmware build engine.
package main

import (
	"github.com/eebbk/s6build/src/s6build/core"
)

func main() {
	core.Execute()
}
