package main

import "go-perform/cmd"

func main() {
	cmd.Execute()
}
