package main

import "github.com/ppiankov/benchwatch/internal/cli"

func main() {
	cli.Execute()
}
