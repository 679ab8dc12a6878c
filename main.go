package main

import (
	"github.com/tapcore/tapcore/cmd"
)

func main() {
	cmd.Execute()
}
