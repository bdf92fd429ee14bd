package main

import (
	"os"

	"github.com/mailreeve/mailreeve/cmd/mailreeve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
