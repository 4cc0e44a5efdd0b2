package main

import "github.com/tessro/ensemble/internal/cli"

func main() {
	cli.Execute()
}
