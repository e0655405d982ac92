package detector

import (
	"fmt"

	"github.com/jedisct1/go-minisign"
)

// VerifyModelSignature checks a gesture model file against its minisign
// signature before the model is trusted for upload. Models ship alongside
// a .minisig file produced by the release pipeline.
func VerifyModelSignature(modelPath, signaturePath string, pubKey minisign.PublicKey) error {
	sig, err := minisign.NewSignatureFromFile(signaturePath)
	if err != nil {
		return fmt.Errorf("read model signature: %w", err)
	}

	valid, err := pubKey.VerifyFromFile(modelPath, sig)
	if err != nil {
		return fmt.Errorf("verify model signature: %w", err)
	}
	if !valid {
		return fmt.Errorf("invalid model signature")
	}
	return nil
}

// ParsePublicKey parses a base64 minisign public key.
func ParsePublicKey(keyStr string) (minisign.PublicKey, error) {
	return minisign.NewPublicKey(keyStr)
}
