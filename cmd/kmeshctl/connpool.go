package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodemesh/kmesh/core"
)

var (
	connPool *core.ConnPool
	cpOnce   sync.Once
)

func cpInit(cmd *cobra.Command, _ []string) error {
	cpOnce.Do(func() {
		d := core.NewDialer(5*time.Second, 30*time.Second)
		connPool = core.NewConnPool(d, 4, time.Minute)
	})
	return nil
}

var connPoolCmd = &cobra.Command{
	Use:               "connpool",
	Short:             "Manage the control-channel connection pool",
	PersistentPreRunE: cpInit,
}

var connPoolStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show idle connection counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "idle connections: %d\n", connPool.Stats())
		return nil
	},
}

var connPoolDialCmd = &cobra.Command{
	Use:   "dial <addr>",
	Short: "Dial addr through the pool and release the connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn, err := connPool.Acquire(ctx, args[0])
		if err != nil {
			return err
		}
		connPool.Release(conn)
		fmt.Fprintln(cmd.OutOrStdout(), "dial ok")
		return nil
	},
}

var connPoolCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close every pooled connection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		connPool.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "pool closed")
		return nil
	},
}

func init() {
	connPoolCmd.AddCommand(connPoolStatsCmd)
	connPoolCmd.AddCommand(connPoolDialCmd)
	connPoolCmd.AddCommand(connPoolCloseCmd)
}
