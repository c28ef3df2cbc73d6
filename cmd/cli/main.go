package main

import "linetest/cmd/cli/command"

func main() {
	command.Execute()
}
