package main

import "github.com/jvs-project/timelock/internal/cli"

func main() {
	cli.Execute()
}
