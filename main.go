package main

import "github.com/martinkersner/dtmx-funding-rate-explorer/cmd"

func main() {
	cmd.Execute()
}
