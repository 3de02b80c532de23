// main is the entry point of the tally CLI.
package main

import (
	"github.com/tallyhq/tally/cmd"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/iocache"
)

func main() {
	err := cmd.Execute()
	iocache.CloseStores()
	if err != nil {
		contract.LogFatal("Error starting CLI", err)
	}
}
