package core

// EncryptAndSign dispatches a single buffer to the backend of the in-use
// instance. An instance must already be in use.
func (m *cryptoManager) EncryptAndSign(plaintext []byte) ([]byte, error) {
	m.mu.RLock()
	inUse := m.inUse
	var inst *instance
	if inUse != 0 {
		inst = m.slots[inUse]
	}
	m.mu.RUnlock()

	if inst == nil {
		return nil, codedErr(ErrConfiguration, "encrypt_and_sign", ErrNoInstances)
	}
	out, err := inst.backend.Crypt(inst.state, plaintext)
	if err != nil {
		return nil, codedErr(ErrBackend, "encrypt_and_sign", err)
	}
	return out, nil
}

// EncryptAndSignV is the vectored/gather form of EncryptAndSign.
func (m *cryptoManager) EncryptAndSignV(iov [][]byte) ([]byte, error) {
	m.mu.RLock()
	inUse := m.inUse
	var inst *instance
	if inUse != 0 {
		inst = m.slots[inUse]
	}
	m.mu.RUnlock()

	if inst == nil {
		return nil, codedErr(ErrConfiguration, "encrypt_and_signv", ErrNoInstances)
	}
	out, err := inst.backend.CryptV(inst.state, iov)
	if err != nil {
		return nil, codedErr(ErrBackend, "encrypt_and_signv", err)
	}
	return out, nil
}
