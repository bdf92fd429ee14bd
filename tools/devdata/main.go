package main

import (
	"os"

	"github.com/mailreeve/mailreeve/tools/devdata/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
