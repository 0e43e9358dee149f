package main

import "github.com/ftl/ecgscope/cmd"

func main() {
	cmd.Execute()
}
