package easy

import (
	"testing"

	"github.com/effective-security/easypkcs11/p11api"
	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeCtx is an in-memory stand-in for a native PKCS#11 module.
type fakeCtx struct {
	calls []string

	slots      []uint
	slotInfos  map[uint]pkcs11.SlotInfo
	tokenInfos map[uint]pkcs11.TokenInfo

	initializeErr         error
	openSessionErr        error
	loginErr              error
	signInitErr           error
	signErr               error
	verifyErr             error
	findErr               error
	infoErr               error
	mechInfoErr           error
	tokenInfoNeedsSession bool

	nextSession  pkcs11.SessionHandle
	openSessions map[pkcs11.SessionHandle]uint
	loginPins    []string

	objects   []pkcs11.ObjectHandle
	attrs     map[pkcs11.ObjectHandle][]*pkcs11.Attribute
	signature []byte
	digest    []byte
	mechList  []*pkcs11.Mechanism
	mechInfo  pkcs11.MechanismInfo

	finalized bool
	destroyed bool
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{
		slots: []uint{0},
		slotInfos: map[uint]pkcs11.SlotInfo{
			0: {
				SlotDescription: "SoftHSM slot 0                  ",
				ManufacturerID:  "SoftHSM project                 ",
				Flags:           pkcs11.CKF_TOKEN_PRESENT,
			},
		},
		tokenInfos: map[uint]pkcs11.TokenInfo{
			0: {
				Label:          "unit-test\x00\x00\x00      ",
				ManufacturerID: "SoftHSM project                 ",
				Model:          "SoftHSM v2      ",
				SerialNumber:   "6e2cfb3996141c13",
				Flags:          pkcs11.CKF_RNG | pkcs11.CKF_LOGIN_REQUIRED | pkcs11.CKF_USER_PIN_INITIALIZED | pkcs11.CKF_TOKEN_INITIALIZED,
			},
		},
		nextSession:  1000,
		openSessions: map[pkcs11.SessionHandle]uint{},
		objects:      []pkcs11.ObjectHandle{77},
		signature:    []byte("fake-signature-bytes"),
		digest:       []byte("fake-digest"),
	}
}

func (f *fakeCtx) record(name string) {
	f.calls = append(f.calls, name)
}

func (f *fakeCtx) Initialize() error {
	f.record("Initialize")
	return f.initializeErr
}

func (f *fakeCtx) Finalize() error {
	f.record("Finalize")
	f.finalized = true
	return nil
}

func (f *fakeCtx) Destroy() {
	f.record("Destroy")
	f.destroyed = true
}

func (f *fakeCtx) GetInfo() (pkcs11.Info, error) {
	f.record("GetInfo")
	if f.infoErr != nil {
		return pkcs11.Info{}, f.infoErr
	}
	return pkcs11.Info{
		CryptokiVersion:    pkcs11.Version{Major: 2, Minor: 40},
		ManufacturerID:     "SoftHSM                         ",
		LibraryDescription: "Implementation of PKCS11        ",
		LibraryVersion:     pkcs11.Version{Major: 2, Minor: 6},
	}, nil
}

func (f *fakeCtx) GetSlotList(tokenPresent bool) ([]uint, error) {
	f.record("GetSlotList")
	if !tokenPresent {
		return f.slots, nil
	}
	var res []uint
	for _, id := range f.slots {
		if _, ok := f.tokenInfos[id]; ok {
			res = append(res, id)
		}
	}
	return res, nil
}

func (f *fakeCtx) GetSlotInfo(slotID uint) (pkcs11.SlotInfo, error) {
	f.record("GetSlotInfo")
	si, ok := f.slotInfos[slotID]
	if !ok {
		return pkcs11.SlotInfo{}, pkcs11.Error(pkcs11.CKR_SLOT_ID_INVALID)
	}
	return si, nil
}

func (f *fakeCtx) GetTokenInfo(slotID uint) (pkcs11.TokenInfo, error) {
	f.record("GetTokenInfo")
	if f.tokenInfoNeedsSession && !f.sessionOnSlot(slotID) {
		return pkcs11.TokenInfo{}, pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	ti, ok := f.tokenInfos[slotID]
	if !ok {
		return pkcs11.TokenInfo{}, pkcs11.Error(pkcs11.CKR_TOKEN_NOT_PRESENT)
	}
	return ti, nil
}

func (f *fakeCtx) sessionOnSlot(slotID uint) bool {
	for _, id := range f.openSessions {
		if id == slotID {
			return true
		}
	}
	return false
}

func (f *fakeCtx) GetMechanismList(slotID uint) ([]*pkcs11.Mechanism, error) {
	f.record("GetMechanismList")
	return f.mechList, nil
}

func (f *fakeCtx) GetMechanismInfo(slotID uint, m []*pkcs11.Mechanism) (pkcs11.MechanismInfo, error) {
	f.record("GetMechanismInfo")
	if f.mechInfoErr != nil {
		return pkcs11.MechanismInfo{}, f.mechInfoErr
	}
	return f.mechInfo, nil
}

func (f *fakeCtx) OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error) {
	f.record("OpenSession")
	if f.openSessionErr != nil {
		return 0, f.openSessionErr
	}
	f.nextSession++
	f.openSessions[f.nextSession] = slotID
	return f.nextSession, nil
}

func (f *fakeCtx) CloseSession(sh pkcs11.SessionHandle) error {
	f.record("CloseSession")
	delete(f.openSessions, sh)
	return nil
}

func (f *fakeCtx) CloseAllSessions(slotID uint) error {
	f.record("CloseAllSessions")
	for sh, id := range f.openSessions {
		if id == slotID {
			delete(f.openSessions, sh)
		}
	}
	return nil
}

func (f *fakeCtx) Login(sh pkcs11.SessionHandle, userType uint, pin string) error {
	f.record("Login")
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loginPins = append(f.loginPins, pin)
	return nil
}

func (f *fakeCtx) Logout(sh pkcs11.SessionHandle) error {
	f.record("Logout")
	return nil
}

func (f *fakeCtx) FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error {
	f.record("FindObjectsInit")
	return f.findErr
}

func (f *fakeCtx) FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error) {
	f.record("FindObjects")
	objs := f.objects
	if len(objs) > max {
		objs = objs[:max]
	}
	// one-shot enumeration, subsequent calls return nothing
	f.objects = nil
	return objs, len(f.objects) > 0, nil
}

func (f *fakeCtx) FindObjectsFinal(sh pkcs11.SessionHandle) error {
	f.record("FindObjectsFinal")
	return nil
}

func (f *fakeCtx) GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error) {
	f.record("GetAttributeValue")
	if attrs, ok := f.attrs[o]; ok {
		return attrs, nil
	}
	return nil, pkcs11.Error(pkcs11.CKR_OBJECT_HANDLE_INVALID)
}

func (f *fakeCtx) SignInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, o pkcs11.ObjectHandle) error {
	f.record("SignInit")
	return f.signInitErr
}

func (f *fakeCtx) Sign(sh pkcs11.SessionHandle, message []byte) ([]byte, error) {
	f.record("Sign")
	if f.signErr != nil {
		return nil, f.signErr
	}
	return f.signature, nil
}

func (f *fakeCtx) VerifyInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error {
	f.record("VerifyInit")
	return nil
}

func (f *fakeCtx) Verify(sh pkcs11.SessionHandle, data []byte, signature []byte) error {
	f.record("Verify")
	return f.verifyErr
}

func (f *fakeCtx) DigestInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism) error {
	f.record("DigestInit")
	return nil
}

func (f *fakeCtx) Digest(sh pkcs11.SessionHandle, message []byte) ([]byte, error) {
	f.record("Digest")
	return f.digest, nil
}

var _ p11api.Context = (*fakeCtx)(nil)

// newFakeClient wires a Client to a fake native module, skipping filesystem
// module resolution.
func newFakeClient(t *testing.T, cfg Config, f *fakeCtx) *Client {
	t.Helper()
	if cfg.Module == "" {
		cfg.Module = "softhsm2"
	}
	c, err := New(cfg)
	require.NoError(t, err)
	c.modulePath = "/usr/lib/softhsm/libsofthsm2.so"
	c.load = func(path string) (p11api.Context, error) {
		return f, nil
	}
	return c
}

func (f *fakeCtx) countCalls(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

var errFakeNative = errors.New("CKR_GENERAL_ERROR")
