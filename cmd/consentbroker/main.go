// Command consentbroker runs the consent broker HTTP service and its
// operator tooling.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
