package cli

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/easypkcs11/easy"
)

// SignCmd signs a file with the configured key
type SignCmd struct {
	File string `kong:"arg" required:"" help:"file to sign"`
	Mech string `help:"mechanism name, default SHA1_RSA_PKCS"`
	Raw  bool   `help:"write the raw binary signature instead of the text envelope"`
	Out  string `help:"output file (default stdout)"`
}

// Run the command
func (a *SignCmd) Run(ctx *Cli) error {
	client := ctx.Client()

	req := easy.Request{File: a.File, Mechanism: a.Mech}
	var out []byte
	if a.Raw {
		sig, err := client.Sign(req)
		if err != nil {
			return errors.WithMessagef(err, "failed to sign: %s", a.File)
		}
		out = sig
	} else {
		enc, err := client.SignAndEncode(req)
		if err != nil {
			return errors.WithMessagef(err, "failed to sign: %s", a.File)
		}
		out = []byte(enc)
	}

	if a.Out != "" {
		return errors.WithStack(os.WriteFile(a.Out, out, 0644))
	}
	_, err := ctx.Writer().Write(out)
	return errors.WithStack(err)
}

// VerifyCmd verifies a signature over a file
type VerifyCmd struct {
	File string `kong:"arg" required:"" help:"signed file"`
	Sig  string `kong:"arg" required:"" help:"signature file, text envelope unless --raw"`
	Mech string `help:"mechanism name, default SHA1_RSA_PKCS"`
	Raw  bool   `help:"signature file contains the raw binary signature"`
}

// Run the command
func (a *VerifyCmd) Run(ctx *Cli) error {
	client := ctx.Client()

	sig, err := os.ReadFile(a.Sig)
	if err != nil {
		return errors.WithMessagef(err, "failed to read signature: %s", a.Sig)
	}
	if !a.Raw {
		sig, err = easy.DecodeSignature(sig)
		if err != nil {
			return errors.WithMessagef(err, "failed to decode signature: %s", a.Sig)
		}
	}

	ok, err := client.Verify(easy.Request{File: a.File, Mechanism: a.Mech}, sig)
	if err != nil {
		return errors.WithMessagef(err, "failed to verify: %s", a.File)
	}
	if ok {
		fmt.Fprintln(ctx.Writer(), "signature: valid")
	} else {
		fmt.Fprintln(ctx.Writer(), "signature: INVALID")
	}
	return nil
}

// DigestCmd digests a file on the token
type DigestCmd struct {
	File string `kong:"arg" required:"" help:"file to digest"`
	Mech string `help:"mechanism name, default SHA_1"`
}

// Run the command
func (a *DigestCmd) Run(ctx *Cli) error {
	digest, err := ctx.Client().Digest(easy.Request{File: a.File, Mechanism: a.Mech})
	if err != nil {
		return errors.WithMessagef(err, "failed to digest: %s", a.File)
	}
	fmt.Fprintln(ctx.Writer(), hex.EncodeToString(digest))
	return nil
}

// DecodeCmd decodes a signature envelope to raw bytes
type DecodeCmd struct {
	File string `kong:"arg" required:"" help:"signature envelope file"`
	Out  string `help:"output file (default stdout)"`
}

// Run the command
func (a *DecodeCmd) Run(ctx *Cli) error {
	data, err := os.ReadFile(a.File)
	if err != nil {
		return errors.WithMessagef(err, "failed to read: %s", a.File)
	}
	raw, err := easy.DecodeSignature(data)
	if err != nil {
		return errors.WithMessagef(err, "failed to decode signature: %s", a.File)
	}
	if a.Out != "" {
		return errors.WithStack(os.WriteFile(a.Out, raw, 0644))
	}
	_, err = ctx.Writer().Write(raw)
	return errors.WithStack(err)
}
