package main

import "github.com/ralverson/vela/cmd"

func main() {
	cmd.Execute()
}
