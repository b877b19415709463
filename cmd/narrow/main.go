package main

import "github.com/duo-labs/narrow/cmd"

func main() {
	cmd.Execute()
}
