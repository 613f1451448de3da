package main

import "github.com/emrgen/template/cmd"

func main() {
	cmd.Execute()
}
