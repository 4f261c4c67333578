package main

import "github.com/aonuma/popscope/cmd"

func main() {
	cmd.Execute()
}
