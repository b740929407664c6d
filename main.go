package main

import "github.com/agentic-research/pocket/cmd"

func main() {
	cmd.Execute()
}
