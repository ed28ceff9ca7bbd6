package policy

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// SignatureVerifier checks detached OpenPGP signatures on policy files.
type SignatureVerifier struct {
	keyring openpgp.EntityList
}

// NewSignatureVerifier reads an armored (or binary) public keyring from path.
func NewSignatureVerifier(path string) (*SignatureVerifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	defer func() { _ = f.Close() }()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return nil, fmt.Errorf("failed to read keyring: %w", err)
		}
		entities, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read keyring: %w", err)
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("keyring %s contains no keys", path)
	}
	return &SignatureVerifier{keyring: entities}, nil
}

// NewSignatureVerifierFromKeyring wraps an in-memory keyring.
func NewSignatureVerifierFromKeyring(keyring openpgp.EntityList) *SignatureVerifier {
	return &SignatureVerifier{keyring: keyring}
}

// Verify checks an armored detached signature over data.
func (v *SignatureVerifier) Verify(data []byte, armoredSig io.Reader) error {
	if _, err := openpgp.CheckArmoredDetachedSignature(v.keyring, bytes.NewReader(data), armoredSig, nil); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

func (v *SignatureVerifier) KeyCount() int { return len(v.keyring) }
