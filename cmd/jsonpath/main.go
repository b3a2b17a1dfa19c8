package main

import (
	"os"

	"github.com/jsonpath-go/jsonpath/cli"
)

func main() {
	os.Exit(cli.Run())
}
