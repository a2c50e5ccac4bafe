package main

import "github.com/tinyclaw-run/tinyclaw/cmd"

var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
