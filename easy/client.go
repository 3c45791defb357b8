package easy

import (
	"strings"

	"github.com/effective-security/easypkcs11/p11api"
	"github.com/effective-security/xlog"
	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/easypkcs11", "easy")

// Client drives a single PKCS#11 module, slot, session, and key.
//
// The lifecycle is a strictly linear state machine, each stage built lazily
// on first use and cached:
//
//	Unloaded -> ModuleLoaded -> Initialized -> SlotSelected -> SessionOpen -> LoggedIn
//
// A Client must not be used concurrently from multiple goroutines.
type Client struct {
	cfg Config

	// load is replaced in tests to substitute a fake native module
	load func(path string) (p11api.Context, error)

	modulePath  string
	ctx         p11api.Context
	initialized bool
	slotID      *uint
	session     *pkcs11.SessionHandle
	loggedIn    bool
	keyHandle   *pkcs11.ObjectHandle
}

// New validates the configuration and returns a Client.
// No native resource is acquired until the first operation needs it.
func New(cfg Config) (*Client, error) {
	if cfg.Module == "" {
		return nil, errors.Errorf("module is required")
	}
	if cfg.Function == "" {
		cfg.Function = FunctionSign
	}
	if cfg.Function != FunctionSign && cfg.Function != FunctionVerify {
		return nil, errors.Errorf("unsupported function: %s", cfg.Function)
	}
	if len(cfg.ModuleDirs) == 0 {
		cfg.ModuleDirs = DefaultModuleDirs
	}
	return &Client{
		cfg:  cfg,
		load: p11api.Load,
	}, nil
}

// Config returns the construction parameters.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases every acquired resource: the session is closed, the module
// finalized and unloaded. Close is safe to call at any stage, including
// after a failed bootstrap, and the Client must not be used afterwards.
func (c *Client) Close() error {
	c.invalidateSession()
	if c.ctx != nil {
		if c.initialized {
			if err := c.ctx.Finalize(); err != nil {
				logger.Warningf("reason=finalize, module=%q, err=[%v]", c.modulePath, err)
			}
			c.initialized = false
		}
		c.ctx.Destroy()
		c.ctx = nil
	}
	c.slotID = nil
	return nil
}

// invalidateSession drops the session and everything resolved through it.
func (c *Client) invalidateSession() {
	if c.session != nil && c.ctx != nil {
		if err := c.ctx.CloseSession(*c.session); err != nil {
			logger.Warningf("reason=close_session, err=[%v]", err)
		}
	}
	c.session = nil
	c.loggedIn = false
	c.keyHandle = nil
}

// module loads and initializes the native library on first use.
// Load and initialize each happen at most once per Client; a failed
// initialize unloads the library before surfacing the error.
func (c *Client) module() (p11api.Context, error) {
	if c.ctx != nil {
		return c.ctx, nil
	}

	if c.modulePath == "" {
		path, err := ResolveModule(c.cfg.Module, c.cfg.ModuleDirs)
		if err != nil {
			return nil, err
		}
		c.modulePath = path
	}

	ctx, err := c.load(c.modulePath)
	if err != nil {
		return nil, errors.WithMessagef(ErrModuleLoad, "%s: %v", c.modulePath, err)
	}
	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, errors.WithMessagef(ErrModuleInit, "C_Initialize %s: %v", c.modulePath, err)
	}

	logger.Debugf("reason=initialized, module=%q", c.modulePath)
	c.ctx = ctx
	c.initialized = true
	return c.ctx, nil
}

// slot selects the slot on first use: by configured id, by token label, or
// automatically when exactly one slot has a token present.
func (c *Client) slot() (uint, error) {
	if c.slotID != nil {
		return *c.slotID, nil
	}

	ctx, err := c.module()
	if err != nil {
		return 0, err
	}

	var id uint
	switch {
	case c.cfg.Slot != nil:
		// used directly, without validation
		id = *c.cfg.Slot

	case c.cfg.TokenLabel != "":
		id, err = c.findSlotByTokenLabel(c.cfg.TokenLabel)
		if err != nil {
			return 0, err
		}

	default:
		slots, err := ctx.GetSlotList(true)
		if err != nil {
			return 0, errors.WithMessagef(ErrInfoRetrieval, "GetSlotList: %v", err)
		}
		switch len(slots) {
		case 0:
			return 0, errors.WithStack(ErrNoSlot)
		case 1:
			id = slots[0]
		default:
			return 0, errors.WithMessagef(ErrAmbiguousSlot, "%d slots with tokens, select one by id or token label", len(slots))
		}
	}

	c.slotID = &id
	return id, nil
}

// findSlotByTokenLabel searches all slots with a token present for an exact
// label match; first match wins. Token labels come back as fixed-width,
// space or NUL padded strings, so trailing padding is trimmed before the
// comparison.
func (c *Client) findSlotByTokenLabel(label string) (uint, error) {
	ctx, err := c.module()
	if err != nil {
		return 0, err
	}

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return 0, errors.WithMessagef(ErrInfoRetrieval, "GetSlotList: %v", err)
	}
	for _, id := range slots {
		ti, err := c.readTokenInfo(id)
		if err != nil {
			logger.Warningf("reason=token_info, slot=%d, err=[%v]", id, err)
			continue
		}
		if ti.Label == label {
			return id, nil
		}
	}
	return 0, errors.WithMessagef(ErrSlotNotFound, "token %q", label)
}

// openSession opens the session on first use. All existing sessions on the
// slot are force-closed first, to recover from a prior crashed session.
func (c *Client) openSession() (pkcs11.SessionHandle, error) {
	if c.session != nil {
		return *c.session, nil
	}

	slotID, err := c.slot()
	if err != nil {
		return 0, err
	}

	if err := c.ctx.CloseAllSessions(slotID); err != nil {
		logger.Warningf("reason=close_all_sessions, slot=%d, err=[%v]", slotID, err)
	}

	flags := uint(pkcs11.CKF_SERIAL_SESSION)
	if c.cfg.RW {
		flags |= pkcs11.CKF_RW_SESSION
	}
	sh, err := c.ctx.OpenSession(slotID, flags)
	if err != nil {
		return 0, errors.WithMessagef(ErrSessionOpen, "C_OpenSession on slot %d: %v", slotID, err)
	}

	c.session = &sh
	return sh, nil
}

// Login authenticates the session with the configured PIN source.
// It is performed at most once per session lifetime; keyed operations drive
// it implicitly.
func (c *Client) Login() error {
	if c.loggedIn {
		return nil
	}

	sh, err := c.openSession()
	if err != nil {
		return err
	}

	pin, err := c.resolvePin()
	if err != nil {
		return err
	}

	if err := c.ctx.Login(sh, pkcs11.CKU_USER, pin); err != nil {
		return errors.WithMessagef(ErrLogin, "C_Login on slot %d: %v", *c.slotID, err)
	}
	c.loggedIn = true
	return nil
}

func (c *Client) resolvePin() (string, error) {
	if c.cfg.Pin == nil {
		return "", errors.WithStack(ErrNoCredential)
	}
	pin, err := c.cfg.Pin.pin()
	if err != nil {
		return "", errors.WithMessagef(ErrNoCredential, "%v", err)
	}
	if pin == "" {
		return "", errors.WithMessagef(ErrNoCredential, "empty PIN")
	}
	return pin, nil
}

// trimPadding removes trailing NUL and whitespace padding from fixed-width
// token and slot strings. Leading characters are preserved.
func trimPadding(s string) string {
	return strings.TrimRight(s, " \t\r\n\x00")
}
