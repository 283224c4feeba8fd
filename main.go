package main

import "github.com/agentic-research/livegraph/cmd"

func main() {
	cmd.Execute()
}
