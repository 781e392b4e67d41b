package main

import "github.com/jmcleod/authseal/cmd/authseal/cmd"

func main() {
	cmd.Execute()
}
