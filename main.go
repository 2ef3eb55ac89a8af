package main

import "github.com/notargets/subflow/cmd"

func main() {
	cmd.Execute()
}
