package main

import "github.com/ppandrangi/crms/cmd"

func main() {
	cmd.Execute()
}
