package main

import "github.com/forPelevin/mdvid/internal/cli"

func main() {
	cli.Main()
}
