package main

import "github.com/mcoot/memorymatch/internal/cli"

func main() {
	cli.Execute()
}
