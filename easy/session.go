package easy

import (
	"fmt"

	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
)

// Info describes the loaded module.
type Info struct {
	CryptokiVersion    string
	Manufacturer       string
	LibraryDescription string
	LibraryVersion     string
}

// TokenInfo describes the token attached to a slot.
type TokenInfo struct {
	Label        string
	Manufacturer string
	Model        string
	Serial       string
	Flags        map[string]bool

	MaxSessionCount   uint
	SessionCount      uint
	MaxRwSessionCount uint
	RwSessionCount    uint
	MaxPinLen         uint
	MinPinLen         uint
}

// Slot describes a slot and, when present, its token.
type Slot struct {
	ID           uint
	Description  string
	Manufacturer string
	Flags        map[string]bool
	Token        *TokenInfo
}

// MechanismInfo describes one mechanism on a slot.
type MechanismInfo struct {
	Name       string
	MinKeySize uint
	MaxKeySize uint
	Flags      map[string]bool
}

func versionString(v pkcs11.Version) string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Info returns the module-level library information.
func (c *Client) Info() (*Info, error) {
	ctx, err := c.module()
	if err != nil {
		return nil, err
	}
	info, err := ctx.GetInfo()
	if err != nil {
		return nil, errors.WithMessagef(ErrInfoRetrieval, "GetInfo %s: %v", c.modulePath, err)
	}
	return &Info{
		CryptokiVersion:    versionString(info.CryptokiVersion),
		Manufacturer:       trimPadding(info.ManufacturerID),
		LibraryDescription: trimPadding(info.LibraryDescription),
		LibraryVersion:     versionString(info.LibraryVersion),
	}, nil
}

// TokenInfo returns the token information for a slot.
func (c *Client) TokenInfo(slotID uint) (*TokenInfo, error) {
	if _, err := c.module(); err != nil {
		return nil, err
	}
	return c.readTokenInfo(slotID)
}

// readTokenInfo reads the token info for a slot. Some native modules
// require an open session merely to read token info, even though the
// standard does not mandate it; when the direct read fails, the read is
// retried once with a best-effort session on the slot.
func (c *Client) readTokenInfo(slotID uint) (*TokenInfo, error) {
	ti, err := c.ctx.GetTokenInfo(slotID)
	if err != nil {
		sh, throwaway, serr := c.introspectionSession(slotID)
		if serr == nil {
			ti, err = c.ctx.GetTokenInfo(slotID)
			if throwaway {
				if cerr := c.ctx.CloseSession(sh); cerr != nil {
					logger.Warningf("reason=close_session, slot=%d, err=[%v]", slotID, cerr)
				}
			}
		}
		if err != nil {
			return nil, errors.WithMessagef(ErrInfoRetrieval, "GetTokenInfo on slot %d: %v", slotID, err)
		}
	}

	return &TokenInfo{
		Label:             trimPadding(ti.Label),
		Manufacturer:      trimPadding(ti.ManufacturerID),
		Model:             trimPadding(ti.Model),
		Serial:            trimPadding(ti.SerialNumber),
		Flags:             TokenFlags(ti.Flags),
		MaxSessionCount:   ti.MaxSessionCount,
		SessionCount:      ti.SessionCount,
		MaxRwSessionCount: ti.MaxRwSessionCount,
		RwSessionCount:    ti.RwSessionCount,
		MaxPinLen:         ti.MaxPinLen,
		MinPinLen:         ti.MinPinLen,
	}, nil
}

// introspectionSession returns a session usable for token introspection:
// the already open session when it belongs to the requested slot, otherwise
// a throwaway read-only one the caller must close.
func (c *Client) introspectionSession(slotID uint) (pkcs11.SessionHandle, bool, error) {
	if c.session != nil && c.slotID != nil && *c.slotID == slotID {
		return *c.session, false, nil
	}
	sh, err := c.ctx.OpenSession(slotID, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		return 0, false, errors.WithMessagef(ErrSessionOpen, "C_OpenSession on slot %d: %v", slotID, err)
	}
	return sh, true, nil
}

// slotRecord builds the Slot structure, attaching token info when a token
// is present.
func (c *Client) slotRecord(slotID uint) (*Slot, error) {
	si, err := c.ctx.GetSlotInfo(slotID)
	if err != nil {
		return nil, errors.WithMessagef(ErrInfoRetrieval, "GetSlotInfo on slot %d: %v", slotID, err)
	}

	s := &Slot{
		ID:           slotID,
		Description:  trimPadding(si.SlotDescription),
		Manufacturer: trimPadding(si.ManufacturerID),
		Flags:        SlotFlags(si.Flags),
	}
	if si.Flags&pkcs11.CKF_TOKEN_PRESENT != 0 {
		ti, err := c.readTokenInfo(slotID)
		if err != nil {
			return nil, err
		}
		s.Token = ti
	}
	return s, nil
}

// Slots lists all visible slots, optionally restricted to slots with a
// token present.
func (c *Client) Slots(withTokenOnly bool) ([]*Slot, error) {
	ctx, err := c.module()
	if err != nil {
		return nil, err
	}

	ids, err := ctx.GetSlotList(withTokenOnly)
	if err != nil {
		return nil, errors.WithMessagef(ErrInfoRetrieval, "GetSlotList: %v", err)
	}

	res := make([]*Slot, 0, len(ids))
	for _, id := range ids {
		s, err := c.slotRecord(id)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

// SlotByID returns the slot record for a slot id.
func (c *Client) SlotByID(slotID uint) (*Slot, error) {
	if _, err := c.module(); err != nil {
		return nil, err
	}
	return c.slotRecord(slotID)
}

// SlotByTokenLabel returns the slot record for the first slot whose token
// label matches exactly.
func (c *Client) SlotByTokenLabel(label string) (*Slot, error) {
	id, err := c.findSlotByTokenLabel(label)
	if err != nil {
		return nil, err
	}
	return c.slotRecord(id)
}

// Mechanisms lists the mechanism names supported by a slot.
// When slotID is nil, the configured slot is used.
func (c *Client) Mechanisms(slotID *uint) ([]string, error) {
	ctx, err := c.module()
	if err != nil {
		return nil, err
	}

	id, err := c.slotOrDefault(slotID)
	if err != nil {
		return nil, err
	}

	mechs, err := ctx.GetMechanismList(id)
	if err != nil {
		return nil, errors.WithMessagef(ErrInfoRetrieval, "GetMechanismList on slot %d: %v", id, err)
	}

	res := make([]string, len(mechs))
	for i, m := range mechs {
		res[i] = MechanismName(m.Mechanism)
	}
	return res, nil
}

// MechanismInfo returns key-size limits and capability flags for a named
// mechanism on a slot. When slotID is nil, the configured slot is used.
func (c *Client) MechanismInfo(name string, slotID *uint) (*MechanismInfo, error) {
	ctx, err := c.module()
	if err != nil {
		return nil, err
	}

	mech, err := MechanismByName(name)
	if err != nil {
		return nil, err
	}

	id, err := c.slotOrDefault(slotID)
	if err != nil {
		return nil, err
	}

	mi, err := ctx.GetMechanismInfo(id, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)})
	if err != nil {
		return nil, errors.WithMessagef(ErrInfoRetrieval, "GetMechanismInfo %s on slot %d: %v", MechanismName(mech), id, err)
	}

	return &MechanismInfo{
		Name:       MechanismName(mech),
		MinKeySize: mi.MinKeySize,
		MaxKeySize: mi.MaxKeySize,
		Flags:      MechanismFlags(mi.Flags),
	}, nil
}

func (c *Client) slotOrDefault(slotID *uint) (uint, error) {
	if slotID != nil {
		return *slotID, nil
	}
	return c.slot()
}
