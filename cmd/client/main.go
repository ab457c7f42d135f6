package main

import (
	"os"

	"bwgen/internal/client/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
