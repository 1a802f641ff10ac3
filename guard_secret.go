package saraAuth

import (
	"fmt"
	"sync/atomic"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/awnumar/memguard"
)

// guardSecret holds the HMAC key for bearer guard tags in an encrypted
// enclave. It is opened for exactly one MAC computation at a time.
type guardSecret struct {
	enclave *memguard.Enclave
	size    int
	closed  atomic.Bool
}

// newGuardSecret seals a copy of secret. The caller's slice is left intact.
func newGuardSecret(secret []byte) *guardSecret {
	size := len(secret)
	return &guardSecret{
		enclave: memguard.NewEnclave(cloneBytes(secret)),
		size:    size,
	}
}

func (g *guardSecret) open() (*memguard.LockedBuffer, error) {
	if g == nil || g.closed.Load() {
		return nil, ErrEngineNotReady
	}
	buf, err := g.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening guard secret: %w", err)
	}
	return buf, nil
}

func (g *guardSecret) tag(jti string) (string, error) {
	buf, err := g.open()
	if err != nil {
		return "", err
	}
	defer buf.Destroy()
	return internal.GuardTag(jti, buf.Bytes()), nil
}

func (g *guardSecret) equal(presented, jti string) (bool, error) {
	buf, err := g.open()
	if err != nil {
		return false, err
	}
	defer buf.Destroy()
	return internal.GuardTagEqual(presented, jti, buf.Bytes()), nil
}

func (g *guardSecret) destroy() {
	if g == nil {
		return
	}
	g.closed.Store(true)
}
