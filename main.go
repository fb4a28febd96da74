package main

import "github.com/agentic-research/appdata/cmd"

func main() {
	cmd.Execute()
}
