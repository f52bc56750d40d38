package main

import "github.com/goosewin/codeagent/cmd"

func main() {
	cmd.Execute()
}
