package core

import "github.com/sirupsen/logrus"

// logDecryptErr logs a decrypt failure at the level the caller asked for —
// DEBUG when an alternate, statistically-unlikely key is being tried,
// ERR otherwise — and returns the error unchanged so callers can write
// `return nil, logDecryptErr(level, err)`.
func logDecryptErr(level LogLevel, err error) error {
	entry := logrus.WithFields(logrus.Fields{"subsystem": "crypto"})
	if level == LogDebug {
		entry.Debug(err)
	} else {
		entry.Error(err)
	}
	return err
}
