package main

import (
	"os"

	"github.com/signalnine/regress/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
