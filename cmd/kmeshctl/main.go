// Command kmeshctl is a demonstration CLI over the kmesh handle API. It
// keeps a single in-process handle alive for the duration of the process
// and exposes crypto/link/acl/connpool operations as cobra subcommands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "kmeshctl"}
	rootCmd.AddCommand(cryptoCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(aclCmd)
	rootCmd.AddCommand(connPoolCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
