package main

import "github.com/flowdb/urkel/cmd/urkelctl/cmd"

func main() {
	cmd.Execute()
}
