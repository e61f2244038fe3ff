package main

import "github.com/nonprofit-tech/casevault/cmd"

func main() {
	cmd.Execute()
}
