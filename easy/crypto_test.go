package easy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signConfig() Config {
	return Config{
		Module: "softhsm2",
		Pin:    Pin("1234"),
		Key:    "test_key_1024",
	}
}

func Test_RequestPayload(t *testing.T) {
	_, err := Request{}.payload()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingInput))

	data, err := Request{Data: []byte("abc")}.payload()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	file := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(file, []byte("from file"), 0644))
	data, err = Request{File: file}.payload()
	require.NoError(t, err)
	assert.Equal(t, []byte("from file"), data)

	_, err = Request{File: filepath.Join(t.TempDir(), "absent")}.payload()
	require.Error(t, err)
}

func Test_Sign(t *testing.T) {
	f := newFakeCtx()
	c := newFakeClient(t, signConfig(), f)

	sig, err := c.Sign(Request{Data: []byte("payload")})
	require.NoError(t, err)
	assert.Equal(t, f.signature, sig)

	// the whole chain bootstrapped implicitly, exactly once
	assert.Equal(t, 1, f.countCalls("Initialize"))
	assert.Equal(t, 1, f.countCalls("OpenSession"))
	assert.Equal(t, 1, f.countCalls("Login"))
	assert.Equal(t, 1, f.countCalls("SignInit"))
}

func Test_SignMechanismOverride(t *testing.T) {
	f := newFakeCtx()
	c := newFakeClient(t, signConfig(), f)

	_, err := c.Sign(Request{Data: []byte("payload"), Mechanism: "SHA256-RSA-PKCS"})
	require.NoError(t, err)

	_, err = c.Sign(Request{Data: []byte("payload"), Mechanism: "NOPE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMechanism))
}

func Test_SignErrors(t *testing.T) {
	t.Run("init", func(t *testing.T) {
		f := newFakeCtx()
		f.signInitErr = pkcs11.Error(pkcs11.CKR_MECHANISM_INVALID)

		c := newFakeClient(t, signConfig(), f)
		_, err := c.Sign(Request{Data: []byte("payload")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSignInit))
	})

	t.Run("sign", func(t *testing.T) {
		f := newFakeCtx()
		f.signErr = pkcs11.Error(pkcs11.CKR_FUNCTION_FAILED)

		c := newFakeClient(t, signConfig(), f)
		_, err := c.Sign(Request{Data: []byte("payload")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSign))
		assert.Contains(t, err.Error(), "test_key_1024")
	})

	t.Run("missing input", func(t *testing.T) {
		f := newFakeCtx()
		c := newFakeClient(t, signConfig(), f)
		_, err := c.Sign(Request{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingInput))
	})
}

func Test_SignAndEncode(t *testing.T) {
	f := newFakeCtx()
	c := newFakeClient(t, signConfig(), f)

	enc, err := c.SignAndEncode(Request{Data: []byte("payload")})
	require.NoError(t, err)
	assert.Equal(t, EncodeSignature(f.signature), enc)

	sig, err := DecodeSignature([]byte(enc))
	require.NoError(t, err)
	assert.Equal(t, f.signature, sig)
}

func Test_Verify(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f := newFakeCtx()
		c := newFakeClient(t, signConfig(), f)

		ok, err := c.Verify(Request{Data: []byte("payload")}, []byte("sig"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("mismatch is not an error", func(t *testing.T) {
		f := newFakeCtx()
		f.verifyErr = pkcs11.Error(pkcs11.CKR_SIGNATURE_INVALID)

		c := newFakeClient(t, signConfig(), f)
		ok, err := c.Verify(Request{Data: []byte("tampered")}, []byte("sig"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing signature", func(t *testing.T) {
		f := newFakeCtx()
		c := newFakeClient(t, signConfig(), f)

		_, err := c.Verify(Request{Data: []byte("payload")}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingSignature))
	})
}

func Test_Digest(t *testing.T) {
	f := newFakeCtx()
	c := newFakeClient(t, Config{Module: "softhsm2"}, f)

	d, err := c.Digest(Request{Data: []byte("payload")})
	require.NoError(t, err)
	assert.Equal(t, f.digest, d)

	// no key object and no login involved
	assert.Equal(t, 0, f.countCalls("Login"))
	assert.Equal(t, 0, f.countCalls("FindObjectsInit"))
	assert.Equal(t, 1, f.countCalls("DigestInit"))
}

func Test_DecodeSignatureRequest(t *testing.T) {
	f := newFakeCtx()
	c := newFakeClient(t, Config{Module: "softhsm2"}, f)

	enc := EncodeSignature([]byte{0xde, 0xad, 0xbe, 0xef})
	file := filepath.Join(t.TempDir(), "sig.txt")
	require.NoError(t, os.WriteFile(file, []byte(enc), 0644))

	raw, err := c.DecodeSignature(Request{File: file})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, raw)
}
