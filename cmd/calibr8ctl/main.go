package main

import (
	"fmt"
	"os"
)

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	if terr := a.teardown(); terr != nil {
		fmt.Fprintln(os.Stderr, "Error:", terr)
		err = terr
	}
	if err != nil {
		os.Exit(1)
	}
}
