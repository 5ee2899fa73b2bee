package initialization

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	mathrand "math/rand/v2"
	"strings"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"

	"golang.org/x/crypto/curve25519"
)

// GenerateHubName picks a readable default name for a fresh hub. Operators
// can rename it on the platform afterwards.
func GenerateHubName() string {
	adjectives := []string{"amber", "cobalt", "quiet", "rapid", "steady", "lucid", "early", "polar", "solar", "mellow"}
	nouns := []string{"harbor", "summit", "canyon", "prairie", "lagoon", "grove", "mesa", "fjord", "delta", "atoll"}

	return fmt.Sprintf("%s_%s", adjectives[mathrand.IntN(len(adjectives))], nouns[mathrand.IntN(len(nouns))])
}

func GenerateX25519KeyPair() (privateKey, publicKey string, err error) {
	scalar := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(scalar); err != nil {
		return "", "", fmt.Errorf("read random scalar: %w", err)
	}

	point, err := curve25519.X25519(scalar, curve25519.Basepoint)
	if err != nil {
		return "", "", fmt.Errorf("derive public point: %w", err)
	}

	return base64.StdEncoding.EncodeToString(scalar), base64.StdEncoding.EncodeToString(point), nil
}

// GenerateAllKeys mints the hub's full crypto identity. Credentials are
// sealed to the X25519 pair and platform requests are signed with the
// Ed25519 pair.
func GenerateAllKeys() (domain.CryptoKeys, error) {
	var keys domain.CryptoKeys
	var err error

	keys.X25519Private, keys.X25519Public, err = GenerateX25519KeyPair()
	if err != nil {
		return domain.CryptoKeys{}, fmt.Errorf("generate X25519 pair: %w", err)
	}

	keys.Ed25519Private, keys.Ed25519Public, err = dsentr.GenerateKeyPair()
	if err != nil {
		return domain.CryptoKeys{}, fmt.Errorf("generate Ed25519 pair: %w", err)
	}

	return keys, nil
}

func GetVerificationURL(apiURL string) string {
	// Local platform builds serve the web app on port 3000.
	if strings.Contains(apiURL, "localhost") || strings.Contains(apiURL, "127.0.0.1") {
		return "http://localhost:3000"
	}

	return "https://app.dsentr.com"
}
