package main

import "github.com/MrEthical07/saraAuth/cmd/saractl/cmd"

func main() {
	cmd.Execute()
}
