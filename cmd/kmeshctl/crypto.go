package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nodemesh/kmesh/core"
)

var cryptoCmd = &cobra.Command{
	Use:   "crypto",
	Short: "Inspect and configure crypto backends",
}

var cryptoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the names of registered crypto backends",
	RunE: func(cmd *cobra.Command, _ []string) error {
		names, _ := core.ListCrypto(nil)
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var cryptoSetConfigCmd = &cobra.Command{
	Use:   "set-config <model>",
	Short: "Install a crypto backend into a slot and make it active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, _ := cmd.Flags().GetUint8("slot")
		cipherType, _ := cmd.Flags().GetString("cipher-type")
		hashType, _ := cmd.Flags().GetString("hash-type")
		privateKeyHex, _ := cmd.Flags().GetString("private-key")

		key, err := hex.DecodeString(privateKeyHex)
		if err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}

		cfg := core.CryptoConfig{
			Model:      args[0],
			CipherType: cipherType,
			HashType:   hashType,
			PrivateKey: key,
		}

		h := getHandle()
		if err := h.CryptoSetConfig(context.Background(), cfg, slot); err != nil {
			return err
		}
		if err := h.CryptoUseConfig(slot); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "crypto model %s active in slot %d\n", args[0], slot)
		return nil
	},
}

var cryptoFiniCmd = &cobra.Command{
	Use:   "fini",
	Short: "Tear down the currently installed crypto instances",
	RunE: func(cmd *cobra.Command, _ []string) error {
		slot, _ := cmd.Flags().GetUint8("slot")
		getHandle().CryptoFini(slot)
		fmt.Fprintln(cmd.OutOrStdout(), "crypto torn down")
		return nil
	},
}

func init() {
	cryptoSetConfigCmd.Flags().Uint8("slot", 1, "slot index to install into")
	cryptoSetConfigCmd.Flags().String("cipher-type", "aes256", "cipher type hint")
	cryptoSetConfigCmd.Flags().String("hash-type", "sha256", "hash type hint")
	cryptoSetConfigCmd.Flags().String("private-key", "", "hex-encoded private key (required)")
	cryptoFiniCmd.Flags().Uint8("slot", 0, "slot to tear down (0 = all)")

	cryptoCmd.AddCommand(cryptoListCmd)
	cryptoCmd.AddCommand(cryptoSetConfigCmd)
	cryptoCmd.AddCommand(cryptoFiniCmd)
}
