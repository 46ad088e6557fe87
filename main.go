package main

import (
	"os"

	"github.com/nscon-gmbh/umbrella-reporting/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
