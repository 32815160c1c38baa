package main

import (
	"fmt"
	"os"

	"github.com/MrEthical07/authstate/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
