package main

import "github.com/ogulcanaydogan/powermon/internal/cli"

func main() {
	cli.Execute()
}
