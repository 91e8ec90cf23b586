package token

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// LoadKeySet reads PEM key material from dir. Signing keys are named
// <kid>.key, verification keys <kid>.pub; retired signing keys may keep
// only their .pub so old tokens verify through their TTL.
func LoadKeySet(dir, activeKID string) (KeySet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return KeySet{}, fmt.Errorf("token: read key dir: %w", err)
	}

	ks := KeySet{
		ActiveKID: activeKID,
		Private:   map[string]*rsa.PrivateKey{},
		Public:    map[string]*rsa.PublicKey{},
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		pem, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return KeySet{}, fmt.Errorf("token: read %s: %w", name, err)
		}
		switch {
		case strings.HasSuffix(name, ".key"):
			kid := strings.TrimSuffix(name, ".key")
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
			if err != nil {
				return KeySet{}, fmt.Errorf("token: parse %s: %w", name, err)
			}
			ks.Private[kid] = priv
		case strings.HasSuffix(name, ".pub"):
			kid := strings.TrimSuffix(name, ".pub")
			pub, err := jwt.ParseRSAPublicKeyFromPEM(pem)
			if err != nil {
				return KeySet{}, fmt.Errorf("token: parse %s: %w", name, err)
			}
			ks.Public[kid] = pub
		}
	}

	// Every signing key must be verifiable too.
	for kid, priv := range ks.Private {
		if ks.Public[kid] == nil {
			ks.Public[kid] = &priv.PublicKey
		}
	}
	if ks.Private[activeKID] == nil {
		return KeySet{}, fmt.Errorf("token: active kid %q has no signing key in %s", activeKID, dir)
	}
	return ks, nil
}
