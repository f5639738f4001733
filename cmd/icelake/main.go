package main

import "github.com/florinutz/icelake/cmd"

func main() {
	cmd.Execute()
}
