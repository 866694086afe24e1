package main

import "github.com/sweassim/varda/cmd"

func main() {
	cmd.Execute()
}
