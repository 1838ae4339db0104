package https

// DisableVerifyPeer turns off peer verification. Only compiled into tests.
func (t *TLSTransport) DisableVerifyPeer() {
	t.verifyPeer = false
}
