// Command backofficectl is the operator tool for the back-office admin API.
package main

import (
	"os"

	"github.com/xavierca1/firm-backoffice/cmd/backofficectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
