// Package easy provides a convenience layer over a PKCS#11 cryptographic
// token: it signs, verifies, and digests data against a key held inside an
// HSM or software token without requiring the caller to drive the verbose
// session/object/mechanism bootstrap sequence by hand.
//
// A Client owns the full native lifecycle: module load and initialization,
// slot selection, session, login, and key resolution. Each stage is built
// lazily on first use and cached for the life of the Client. A Client is
// not safe for concurrent use; callers that need independent credentials or
// sessions must construct their own Client.
//
// The native library is accessed through the p11api.Context capability
// interface, implemented in production by github.com/miekg/pkcs11.
package easy
