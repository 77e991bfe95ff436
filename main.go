package main

import (
	"github.com/relaygrid/mcpgate/cmd"
)

func main() {
	cmd.Execute()
}
