package main

import "github.com/findirfin/ringil/internal/cli"

func main() {
	cli.Execute()
}
