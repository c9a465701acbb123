package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nodemesh/kmesh/core"
)

var aclCmd = &cobra.Command{
	Use:   "acl",
	Short: "Manage link ACLs",
}

var aclAddCmd = &cobra.Command{
	Use:   "add <sock> <ip1> [ip2]",
	Short: "Append an ACCEPT entry for ip1 (or the ip1-ip2 range, if ip2 is given)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid sock: %w", err)
		}
		ip1 := net.ParseIP(args[1])
		if ip1 == nil {
			return fmt.Errorf("invalid ip1: %s", args[1])
		}
		entry := core.ACLEntry{Kind: core.ACLAddress, IP1: ip1, Action: core.ACLAccept}
		if len(args) == 3 {
			ip2 := net.ParseIP(args[2])
			if ip2 == nil {
				return fmt.Errorf("invalid ip2: %s", args[2])
			}
			entry.Kind = core.ACLRange
			entry.IP2 = ip2
		}
		getHandle().ACLAdd(sock, uint8(core.TransportUDP), entry)
		fmt.Fprintln(cmd.OutOrStdout(), "acl entry added")
		return nil
	},
}

var aclValidateCmd = &cobra.Command{
	Use:   "validate <sock> <ip>",
	Short: "Show the ACL decision for ip against sock",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid sock: %w", err)
		}
		ip := net.ParseIP(args[1])
		if ip == nil {
			return fmt.Errorf("invalid ip: %s", args[1])
		}
		action := getHandle().ACLValidate(sock, uint8(core.TransportUDP), ip)
		if action == core.ACLAccept {
			fmt.Fprintln(cmd.OutOrStdout(), "accept")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "reject")
		}
		return nil
	},
}

func init() {
	aclCmd.AddCommand(aclAddCmd)
	aclCmd.AddCommand(aclValidateCmd)
}
