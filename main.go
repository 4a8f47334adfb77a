// Package main is the entry point for the ctxprobe CLI.
package main

import "ctxprobe.dev/pkg/ctxprobe/cmd"

func main() {
	cmd.Execute()
}
