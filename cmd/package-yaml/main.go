package main

import (
	"errors"
	"fmt"
	"os"
)

var version = "0.1.0-dev"

func main() {
	a := newApp()
	err := newRootCmd(a).Execute()
	if terr := a.teardown(); terr != nil {
		fmt.Fprintln(os.Stderr, "Error:", terr)
	}
	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
