package easy

import "github.com/pkg/errors"

// Sentinel errors returned by this package. Callers can test for them with
// errors.Is; the wrapped message carries the failing native call, the
// resource involved, and the native diagnostic where available.
var (
	// ErrModuleNotFound is returned when the module name cannot be located
	// in any of the configured search directories.
	ErrModuleNotFound = errors.New("module not found")
	// ErrNoSearchPaths is returned when none of the configured module
	// search directories exist.
	ErrNoSearchPaths = errors.New("no module search paths exist")
	// ErrModuleLoad is returned when the native library cannot be loaded.
	ErrModuleLoad = errors.New("unable to load module")
	// ErrModuleInit is returned when C_Initialize fails.
	ErrModuleInit = errors.New("unable to initialize module")
	// ErrSlotNotFound is returned when no token matches the configured label.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrAmbiguousSlot is returned when no slot was configured and more
	// than one slot has a token present.
	ErrAmbiguousSlot = errors.New("more than one slot with a token present")
	// ErrNoSlot is returned when no slot was configured and no slot has a
	// token present.
	ErrNoSlot = errors.New("no slot with a token present")
	// ErrSessionOpen is returned when C_OpenSession fails.
	ErrSessionOpen = errors.New("unable to open session")
	// ErrNoCredential is returned when no PIN can be obtained.
	ErrNoCredential = errors.New("no PIN available")
	// ErrLogin is returned when C_Login fails.
	ErrLogin = errors.New("login failed")
	// ErrKeyNotFound is returned when no object matches the label and
	// capability attribute.
	ErrKeyNotFound = errors.New("key not found")
	// ErrMissingInput is returned when an operation is given neither raw
	// data nor a file.
	ErrMissingInput = errors.New("either data or file is required")
	// ErrUnknownMechanism is returned for an unresolvable mechanism name.
	ErrUnknownMechanism = errors.New("unknown mechanism")
	// ErrSignInit is returned when C_SignInit fails.
	ErrSignInit = errors.New("unable to initialize signing")
	// ErrSign is returned when C_Sign fails.
	ErrSign = errors.New("signing failed")
	// ErrMissingSignature is returned when Verify is given an empty signature.
	ErrMissingSignature = errors.New("signature is required")
	// ErrMalformedSignature is returned when a signature envelope cannot be
	// parsed.
	ErrMalformedSignature = errors.New("malformed signature")
	// ErrInfoRetrieval is returned when a GetInfo/GetSlotInfo/GetTokenInfo/
	// GetMechanismInfo call fails.
	ErrInfoRetrieval = errors.New("unable to retrieve info")
)
