package main

import "github.com/Paintersrp/berth/internal/cli"

func main() {
	cli.Execute()
}
