package easy

import (
	"os"
	"time"

	"github.com/effective-security/easypkcs11/metricskey"
	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
)

// ProviderName is the tag used for metrics published by this package.
const ProviderName = "pkcs11"

// Request carries the input of a crypto operation: either raw Data or a
// File to read whole, plus an optional mechanism-name override.
type Request struct {
	Data []byte
	File string

	// Mechanism overrides the operation's default mechanism by canonical
	// name (the CKM_* constant without its prefix, hyphens normalized to
	// underscores).
	Mechanism string
}

// payload normalizes the data source to a byte slice.
func (r Request) payload() ([]byte, error) {
	if len(r.Data) > 0 {
		return r.Data, nil
	}
	if r.File != "" {
		b, err := os.ReadFile(r.File)
		if err != nil {
			return nil, errors.WithMessagef(err, "unable to read input file: %s", r.File)
		}
		return b, nil
	}
	return nil, errors.WithStack(ErrMissingInput)
}

// Sign signs the payload with the configured key in a single operation.
// Default mechanism: SHA-1 with RSA PKCS#1 v1.5.
func (c *Client) Sign(req Request) ([]byte, error) {
	defer metricskey.PerfCryptoOperation.MeasureSince(time.Now(), ProviderName, "sign")

	data, err := req.payload()
	if err != nil {
		return nil, err
	}
	mech, err := resolveMechanism(req.Mechanism, defaultSignMechanism)
	if err != nil {
		return nil, err
	}

	if err := c.Login(); err != nil {
		return nil, err
	}
	key, err := c.resolveKey()
	if err != nil {
		return nil, err
	}

	sh := *c.session
	if err := c.ctx.SignInit(sh, []*pkcs11.Mechanism{mech}, key); err != nil {
		return nil, errors.WithMessagef(ErrSignInit, "C_SignInit %s with key %q: %v", MechanismName(mech.Mechanism), c.cfg.Key, err)
	}
	sig, err := c.ctx.Sign(sh, data)
	if err != nil {
		return nil, errors.WithMessagef(ErrSign, "C_Sign with key %q: %v", c.cfg.Key, err)
	}
	return sig, nil
}

// SignAndEncode signs the payload and frames the signature in the base64
// text envelope.
func (c *Client) SignAndEncode(req Request) (string, error) {
	sig, err := c.Sign(req)
	if err != nil {
		return "", err
	}
	return EncodeSignature(sig), nil
}

// Verify checks the signature over the payload with the configured key.
// A mismatch is a normal false result, not an error; the native diagnostic
// is logged at informational level.
func (c *Client) Verify(req Request, signature []byte) (bool, error) {
	defer metricskey.PerfCryptoOperation.MeasureSince(time.Now(), ProviderName, "verify")

	if len(signature) == 0 {
		return false, errors.WithStack(ErrMissingSignature)
	}
	data, err := req.payload()
	if err != nil {
		return false, err
	}
	mech, err := resolveMechanism(req.Mechanism, defaultSignMechanism)
	if err != nil {
		return false, err
	}

	if err := c.Login(); err != nil {
		return false, err
	}
	key, err := c.resolveKey()
	if err != nil {
		return false, err
	}

	sh := *c.session
	if err := c.ctx.VerifyInit(sh, []*pkcs11.Mechanism{mech}, key); err != nil {
		return false, errors.WithMessagef(err, "C_VerifyInit %s with key %q", MechanismName(mech.Mechanism), c.cfg.Key)
	}
	if err := c.ctx.Verify(sh, data, signature); err != nil {
		logger.Infof("reason=mismatch, key=%q, err=[%v]", c.cfg.Key, err)
		return false, nil
	}
	return true, nil
}

// Digest computes a digest of the payload. No key object or login is
// required. Default mechanism: SHA-1.
func (c *Client) Digest(req Request) ([]byte, error) {
	defer metricskey.PerfCryptoOperation.MeasureSince(time.Now(), ProviderName, "digest")

	data, err := req.payload()
	if err != nil {
		return nil, err
	}
	mech, err := resolveMechanism(req.Mechanism, defaultDigestMechanism)
	if err != nil {
		return nil, err
	}

	sh, err := c.openSession()
	if err != nil {
		return nil, err
	}

	if err := c.ctx.DigestInit(sh, []*pkcs11.Mechanism{mech}); err != nil {
		return nil, errors.WithMessagef(err, "C_DigestInit %s", MechanismName(mech.Mechanism))
	}
	digest, err := c.ctx.Digest(sh, data)
	if err != nil {
		return nil, errors.WithMessagef(err, "C_Digest")
	}
	return digest, nil
}

// DecodeSignature normalizes the input like any other operation and decodes
// the signature envelope it contains.
func (c *Client) DecodeSignature(req Request) ([]byte, error) {
	data, err := req.payload()
	if err != nil {
		return nil, err
	}
	return DecodeSignature(data)
}
