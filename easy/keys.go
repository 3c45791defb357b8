package easy

import (
	"strings"

	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
)

// KeyInfo describes a key object on the token.
type KeyInfo struct {
	ID    string
	Label string
	Type  string
	Class string
}

// keyTypeNames maps CKK_* values to display names.
var keyTypeNames = map[uint]string{
	pkcs11.CKK_RSA:            "RSA",
	pkcs11.CKK_DSA:            "DSA",
	pkcs11.CKK_DH:             "DH",
	pkcs11.CKK_ECDSA:          "ECDSA",
	pkcs11.CKK_AES:            "AES",
	pkcs11.CKK_DES3:           "DES3",
	pkcs11.CKK_GENERIC_SECRET: "GENERIC_SECRET",
}

// objectClassNames maps CKO_* values to display names.
var objectClassNames = map[uint]string{
	pkcs11.CKO_PRIVATE_KEY: "PRIVATE_KEY",
	pkcs11.CKO_PUBLIC_KEY:  "PUBLIC_KEY",
	pkcs11.CKO_SECRET_KEY:  "SECRET_KEY",
	pkcs11.CKO_CERTIFICATE: "CERTIFICATE",
	pkcs11.CKO_DATA:        "DATA",
}

// SigningKey locates a sign-capable key object by label.
func (c *Client) SigningKey(label string) (pkcs11.ObjectHandle, error) {
	return c.findKey(label, pkcs11.CKA_SIGN)
}

// VerificationKey locates a verify-capable key object by label.
func (c *Client) VerificationKey(label string) (pkcs11.ObjectHandle, error) {
	return c.findKey(label, pkcs11.CKA_VERIFY)
}

// findKey locates a single object matching the label and capability
// attribute. The find is bounded to one result: labels are assumed unique
// per capability scope, and any additional matches are never fetched.
func (c *Client) findKey(label string, capability uint) (pkcs11.ObjectHandle, error) {
	if err := c.Login(); err != nil {
		return 0, err
	}
	sh := *c.session

	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(capability, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	if err := c.ctx.FindObjectsInit(sh, template); err != nil {
		return 0, errors.WithMessagef(err, "FindObjectsInit for %q", label)
	}
	objs, _, err := c.ctx.FindObjects(sh, 1)
	ferr := c.ctx.FindObjectsFinal(sh)
	if err != nil {
		return 0, errors.WithMessagef(err, "FindObjects for %q", label)
	}
	if ferr != nil {
		return 0, errors.WithMessagef(ferr, "FindObjectsFinal for %q", label)
	}
	if len(objs) == 0 {
		return 0, errors.WithMessagef(ErrKeyNotFound, "label %q", label)
	}
	return objs[0], nil
}

// resolveKey returns the key for the configured label and function,
// resolving it on first use and caching it for the life of the Client.
func (c *Client) resolveKey() (pkcs11.ObjectHandle, error) {
	if c.keyHandle != nil {
		return *c.keyHandle, nil
	}

	if c.cfg.Key == "" {
		return 0, errors.WithMessagef(ErrKeyNotFound, "no key label configured")
	}

	capability := uint(pkcs11.CKA_SIGN)
	if c.cfg.Function == FunctionVerify {
		capability = pkcs11.CKA_VERIFY
	}

	h, err := c.findKey(c.cfg.Key, capability)
	if err != nil {
		return 0, err
	}
	c.keyHandle = &h
	return h, nil
}

// Keys enumerates private key objects on the token, optionally filtered by
// label prefix.
func (c *Client) Keys(prefix string) ([]KeyInfo, error) {
	if err := c.Login(); err != nil {
		return nil, err
	}
	sh := *c.session

	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
	}
	if err := c.ctx.FindObjectsInit(sh, template); err != nil {
		return nil, errors.WithMessagef(err, "FindObjectsInit on slot %d", *c.slotID)
	}

	var handles []pkcs11.ObjectHandle
	for {
		objs, _, err := c.ctx.FindObjects(sh, 32)
		if err != nil {
			_ = c.ctx.FindObjectsFinal(sh)
			return nil, errors.WithMessagef(err, "FindObjects on slot %d", *c.slotID)
		}
		if len(objs) == 0 {
			break
		}
		handles = append(handles, objs...)
	}
	if err := c.ctx.FindObjectsFinal(sh); err != nil {
		return nil, errors.WithMessagef(err, "FindObjectsFinal on slot %d", *c.slotID)
	}

	res := make([]KeyInfo, 0, len(handles))
	for _, obj := range handles {
		attributes := []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_ID, 0),
			pkcs11.NewAttribute(pkcs11.CKA_LABEL, 0),
			pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, 0),
			pkcs11.NewAttribute(pkcs11.CKA_CLASS, 0),
		}
		attributes, err := c.ctx.GetAttributeValue(sh, obj, attributes)
		if err != nil {
			return nil, errors.WithMessagef(err, "GetAttributeValue on key")
		}

		keyLabel := string(attributes[1].Value)
		if prefix != "" && !strings.HasPrefix(keyLabel, prefix) {
			continue
		}
		res = append(res, KeyInfo{
			ID:    string(attributes[0].Value),
			Label: keyLabel,
			Type:  keyTypeNames[bytesToUlong(attributes[2].Value)],
			Class: objectClassNames[bytesToUlong(attributes[3].Value)],
		})
	}
	return res, nil
}

// bytesToUlong decodes a native CK_ULONG attribute value.
func bytesToUlong(b []byte) uint {
	var res uint
	for i := len(b) - 1; i >= 0; i-- {
		res = res<<8 | uint(b[i])
	}
	return res
}
