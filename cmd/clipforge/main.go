package main

import "github.com/forPelevin/clipforge/internal/cli"

func main() {
	cli.Main()
}
