package main

import "github.com/jmcleod/studydeck/cmd/studydeck/cmd"

func main() {
	cmd.Execute()
}
