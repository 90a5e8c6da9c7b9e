package main

import "github.com/support-tools/fortisync/cmd"

func main() {
	cmd.Execute()
}
