package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// GenerateKeyPair returns a fresh PEM-encoded key pair for method.
// Private keys are PKCS#8, public keys PKIX.
func GenerateKeyPair(method SigningMethod) (privatePEM, publicPEM []byte, err error) {
	var priv, pub any
	switch method {
	case MethodES256, "":
		k, genErr := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if genErr != nil {
			return nil, nil, genErr
		}
		priv, pub = k, &k.PublicKey
	case MethodEd25519:
		pk, sk, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, nil, genErr
		}
		priv, pub = sk, pk
	default:
		return nil, nil, errors.New("unsupported signing method")
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}
