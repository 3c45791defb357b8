package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InfoCmd prints the module info
type InfoCmd struct {
}

// Run the command
func (a *InfoCmd) Run(ctx *Cli) error {
	info, err := ctx.Client().Info()
	if err != nil {
		return errors.WithMessage(err, "failed to get module info")
	}
	return ctx.WriteJSON(info)
}

// SlotsCmd prints the visible slots and their tokens
type SlotsCmd struct {
	All bool `help:"include slots without a token"`
}

// Run the command
func (a *SlotsCmd) Run(ctx *Cli) error {
	slots, err := ctx.Client().Slots(!a.All)
	if err != nil {
		return errors.WithMessage(err, "failed to list slots")
	}
	return ctx.WriteJSON(slots)
}

// TokenInfoCmd prints the token info for a slot
type TokenInfoCmd struct {
	Slot uint `kong:"arg" required:"" help:"slot id"`
}

// Run the command
func (a *TokenInfoCmd) Run(ctx *Cli) error {
	ti, err := ctx.Client().TokenInfo(a.Slot)
	if err != nil {
		return errors.WithMessagef(err, "failed to get token info on slot %d", a.Slot)
	}
	return ctx.WriteJSON(ti)
}

// MechanismsCmd prints the mechanisms supported by a slot
type MechanismsCmd struct {
	Slot *uint `help:"slot id (default: configured slot)"`
}

// Run the command
func (a *MechanismsCmd) Run(ctx *Cli) error {
	mechs, err := ctx.Client().Mechanisms(a.Slot)
	if err != nil {
		return errors.WithMessage(err, "failed to list mechanisms")
	}
	out := ctx.Writer()
	for _, m := range mechs {
		fmt.Fprintln(out, m)
	}
	return nil
}

// MechanismInfoCmd prints the info for one mechanism
type MechanismInfoCmd struct {
	Mech string `kong:"arg" required:"" help:"mechanism name"`
	Slot *uint  `help:"slot id (default: configured slot)"`
}

// Run the command
func (a *MechanismInfoCmd) Run(ctx *Cli) error {
	mi, err := ctx.Client().MechanismInfo(a.Mech, a.Slot)
	if err != nil {
		return errors.WithMessagef(err, "failed to get mechanism info: %s", a.Mech)
	}
	return ctx.WriteJSON(mi)
}

// KeysCmd prints the private key objects on the token
type KeysCmd struct {
	Prefix string `help:"key label prefix (optional)"`
}

// Run the command
func (a *KeysCmd) Run(ctx *Cli) error {
	keys, err := ctx.Client().Keys(a.Prefix)
	if err != nil {
		return errors.WithMessage(err, "failed to list keys")
	}
	if a.Prefix != "" && len(keys) == 0 {
		fmt.Fprintf(ctx.Writer(), "no keys found with prefix: %s\n", a.Prefix)
		return nil
	}
	return ctx.WriteJSON(keys)
}
