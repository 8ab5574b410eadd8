// Package main is the single-binary entrypoint for tutu-gym: the training
// daemon, its CLI client and the subprocess worker.
package main

import "github.com/tutu-network/tutu-gym/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
