package main

import "github.com/attendly/facegate/cmd"

func main() {
	cmd.Execute()
}
