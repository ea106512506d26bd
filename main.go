package main

import "github.com/kebairia/rdhist/cmd"

func main() {
	cmd.Execute()
}
