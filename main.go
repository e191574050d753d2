package main

import "github.com/gekko-build/gekko/cmd"

func main() {
	cmd.Execute()
}
