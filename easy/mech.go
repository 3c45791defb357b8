package easy

import (
	"fmt"
	"strings"

	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
)

// Default mechanisms per operation kind
const (
	defaultSignMechanism   = pkcs11.CKM_SHA1_RSA_PKCS
	defaultDigestMechanism = pkcs11.CKM_SHA_1
)

// mechanisms maps canonical mechanism names to their numeric identifiers.
// Canonical names are the CKM_* constant names without the prefix;
// hyphens in caller-supplied names are normalized to underscores.
var mechanisms = map[string]uint{
	"RSA_PKCS":            pkcs11.CKM_RSA_PKCS,
	"RSA_PKCS_PSS":        pkcs11.CKM_RSA_PKCS_PSS,
	"RSA_X_509":           pkcs11.CKM_RSA_X_509,
	"MD5_RSA_PKCS":        pkcs11.CKM_MD5_RSA_PKCS,
	"SHA1_RSA_PKCS":       pkcs11.CKM_SHA1_RSA_PKCS,
	"SHA224_RSA_PKCS":     pkcs11.CKM_SHA224_RSA_PKCS,
	"SHA256_RSA_PKCS":     pkcs11.CKM_SHA256_RSA_PKCS,
	"SHA384_RSA_PKCS":     pkcs11.CKM_SHA384_RSA_PKCS,
	"SHA512_RSA_PKCS":     pkcs11.CKM_SHA512_RSA_PKCS,
	"SHA1_RSA_PKCS_PSS":   pkcs11.CKM_SHA1_RSA_PKCS_PSS,
	"SHA256_RSA_PKCS_PSS": pkcs11.CKM_SHA256_RSA_PKCS_PSS,
	"SHA384_RSA_PKCS_PSS": pkcs11.CKM_SHA384_RSA_PKCS_PSS,
	"SHA512_RSA_PKCS_PSS": pkcs11.CKM_SHA512_RSA_PKCS_PSS,
	"ECDSA":               pkcs11.CKM_ECDSA,
	"ECDSA_SHA1":          pkcs11.CKM_ECDSA_SHA1,
	"ECDSA_SHA256":        pkcs11.CKM_ECDSA_SHA256,
	"ECDSA_SHA384":        pkcs11.CKM_ECDSA_SHA384,
	"ECDSA_SHA512":        pkcs11.CKM_ECDSA_SHA512,
	"MD5":                 pkcs11.CKM_MD5,
	"SHA_1":               pkcs11.CKM_SHA_1,
	"SHA224":              pkcs11.CKM_SHA224,
	"SHA256":              pkcs11.CKM_SHA256,
	"SHA384":              pkcs11.CKM_SHA384,
	"SHA512":              pkcs11.CKM_SHA512,
}

var mechanismNames = func() map[uint]string {
	res := make(map[uint]string, len(mechanisms))
	for name, id := range mechanisms {
		res[id] = name
	}
	return res
}()

// MechanismByName resolves a canonical mechanism name to its identifier.
// Hyphens are normalized to underscores; the lookup is case-sensitive.
func MechanismByName(name string) (uint, error) {
	id, ok := mechanisms[strings.ReplaceAll(name, "-", "_")]
	if !ok {
		return 0, errors.WithMessagef(ErrUnknownMechanism, "%s", name)
	}
	return id, nil
}

// MechanismName returns the canonical name for a mechanism identifier,
// or its hex form when the mechanism is not in the table.
func MechanismName(id uint) string {
	if name, ok := mechanismNames[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", id)
}

// resolveMechanism returns the mechanism to use for an operation:
// the default unless the caller overrides it by name.
func resolveMechanism(name string, def uint) (*pkcs11.Mechanism, error) {
	id := def
	if name != "" {
		var err error
		id, err = MechanismByName(name)
		if err != nil {
			return nil, err
		}
	}
	return pkcs11.NewMechanism(id, nil), nil
}
