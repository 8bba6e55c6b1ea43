package main

import "github.com/supragya/InterchainRelayer/cmd"

func main() {
	cmd.Execute()
}
