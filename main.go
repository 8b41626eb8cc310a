package main

import "github.com/aictx/aictx/cmd"

func main() {
	cmd.Execute()
}
