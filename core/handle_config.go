package core

import (
	"context"
	"encoding/hex"

	"github.com/nodemesh/kmesh/pkg/config"
)

// HandleNewFromConfig builds a handle and immediately applies cfg's crypto
// settings to slot 1, the way an operator's kmesh.yaml configures a fresh
// handle at startup. It is a thin convenience layered on HandleNew and
// CryptoSetConfig/CryptoUseConfig; a handle never requires a config file
// to exist, since every field can also be set by discrete API calls.
func HandleNewFromConfig(ctx context.Context, nodeID NodeID, logLevel LogLevel, cfg *config.Config) (*Handle, error) {
	h := HandleNew(nodeID, logLevel, 0)

	if cfg.Crypto.Model == "" {
		return h, nil
	}

	key, err := hex.DecodeString(cfg.Crypto.PrivateKey)
	if err != nil {
		h.Free()
		return nil, codedErr(ErrConfiguration, "handle_new_from_config", err)
	}

	cryptoCfg := CryptoConfig{
		Model:      cfg.Crypto.Model,
		CipherType: cfg.Crypto.CipherType,
		HashType:   cfg.Crypto.HashType,
		PrivateKey: key,
	}
	if err := h.Crypto(ctx, cryptoCfg); err != nil {
		h.Free()
		return nil, err
	}

	h.PMTUDSetFreq(cfg.PMTUD.Freq)
	return h, nil
}
