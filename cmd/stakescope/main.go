package main

import "github.com/stakescope/stakescope/internal/cli"

func main() {
	cli.Execute()
}
