package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodemesh/kmesh/core"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage host links",
}

var linkAddCmd = &cobra.Command{
	Use:   "add <host-id>",
	Short: "Add a link to a host and enable it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid host id: %w", err)
		}
		h := getHandle()
		host := h.Host(core.NodeID(id))
		if host == nil {
			host = h.HostAdd(core.NodeID(id), false, false)
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ping, _ := cmd.Flags().GetDuration("ping-interval")
		window, _ := cmd.Flags().GetInt("precision-window")

		idx, err := h.LinkSetConfig(core.NodeID(id), core.LinkConfig{
			Transport:       core.TransportUDP,
			TimeoutInterval: timeout,
			PingInterval:    ping,
			PrecisionWindow: window,
		})
		if err != nil {
			return err
		}
		h.LinkSetEnable(core.NodeID(id), idx, true, time.Now())
		fmt.Fprintf(cmd.OutOrStdout(), "link %d added to host %d\n", idx, id)
		_ = host
		return nil
	},
}

var linkStatusCmd = &cobra.Command{
	Use:   "status <host-id> <link-idx>",
	Short: "Show a link's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid host id: %w", err)
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid link index: %w", err)
		}
		st, ok := getHandle().LinkGetStatus(core.NodeID(id), idx)
		if !ok {
			return fmt.Errorf("no such link")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enabled=%v state=%v connected=%v latency=%v data_mtu=%d\n",
			st.Enabled, st.State, st.Connected, st.Latency, st.DataMTU)
		return nil
	},
}

func init() {
	linkAddCmd.Flags().Duration("timeout", 5*time.Second, "timeout interval before DISCONNECTED")
	linkAddCmd.Flags().Duration("ping-interval", time.Second, "ping probe interval")
	linkAddCmd.Flags().Int("precision-window", 8, "EWMA precision window in samples")

	linkCmd.AddCommand(linkAddCmd)
	linkCmd.AddCommand(linkStatusCmd)
}
