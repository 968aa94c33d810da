package main

import "github.com/forPelevin/blockcut/internal/cli"

func main() { cli.Main() }
