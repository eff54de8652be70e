package main

import "github.com/safwentrabelsi/voce/cli"

func main() {
	cli.Execute()
}
