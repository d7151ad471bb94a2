package auth

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

// LoadKeys reads the PEM signing keypair, private.key (PKCS8 or PKCS1) and
// public.key (PKIX), from dir.
func LoadKeys(dir string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privPEM, err := os.ReadFile(filepath.Join(dir, "private.key"))
	if err != nil {
		return nil, nil, err
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	pubPEM, err := os.ReadFile(filepath.Join(dir, "public.key"))
	if err != nil {
		return nil, nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 {
		return nil, nil, fmt.Errorf("public.key does not match private.key")
	}
	return priv, pub, nil
}
