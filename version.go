package main

import (
	"fmt"

	"github.com/nostria-app/nostria-proxy/internal/version"
)

func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}
