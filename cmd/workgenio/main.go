// Command workgenio serves and operates the WorkGenio consistency core:
// gap-free invoice numbering and referential integrity of customers,
// products and suppliers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
