package main

import "codeuchat/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
