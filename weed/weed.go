package main

import (
	"os"

	"github.com/brstgt/seaweed-admin/weed/command"
)

func main() {
	os.Exit(command.Execute())
}
