package main

import "research-agent/cmd/research/cmd"

func main() {
	cmd.Execute()
}
