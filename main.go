package main

import "github.com/holpsBot/proof-of-wake/cmd"

func main() {
	cmd.Execute()
}
