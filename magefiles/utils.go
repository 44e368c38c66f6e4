//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// goCmd runs the go tool, echoing the command line. Output is streamed with -v
// or always when stream is set.
func goCmd(stream bool, args ...string) error {
	fmt.Printf("Executing: %s %s\n", mg.GoCmd(), strings.Join(args, " "))
	if stream || mg.Verbose() {
		return sh.RunV(mg.GoCmd(), args...)
	}
	out, err := sh.Output(mg.GoCmd(), args...)
	if err != nil {
		fmt.Println("... failed command output:")
		fmt.Println(out)
		return fmt.Errorf("error executing go %s: %w", args[0], err)
	}
	return nil
}

// cartofx runs the command line from source.
func cartofx(args ...string) error {
	return goCmd(true, append([]string{"run", "."}, args...)...)
}
