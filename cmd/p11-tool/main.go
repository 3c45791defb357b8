package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/effective-security/easypkcs11/cmd/p11-tool/cli"
	"github.com/effective-security/easypkcs11/internal/version"
	"github.com/effective-security/x/ctl"
)

type app struct {
	cli.Cli

	Info          cli.InfoCmd          `cmd:"" help:"print module info"`
	Slots         cli.SlotsCmd         `cmd:"" help:"list slots and tokens"`
	Token         cli.TokenInfoCmd     `cmd:"" help:"print token info"`
	Mechanisms    cli.MechanismsCmd    `cmd:"" help:"list mechanisms"`
	MechanismInfo cli.MechanismInfoCmd `cmd:"" help:"print mechanism info"`
	Keys          cli.KeysCmd          `cmd:"" help:"list keys"`
	Sign          cli.SignCmd          `cmd:"" help:"sign a file"`
	Verify        cli.VerifyCmd        `cmd:"" help:"verify a signature"`
	Digest        cli.DigestCmd        `cmd:"" help:"digest a file"`
	Decode        cli.DecodeCmd        `cmd:"" help:"decode a signature envelope"`
}

func main() {
	realMain(os.Args, os.Stdout, os.Stderr, os.Exit)
}

func realMain(args []string, out io.Writer, errout io.Writer, exit func(int)) {
	cl := app{
		Cli: cli.Cli{},
	}
	cl.Cli.WithErrWriter(errout).
		WithWriter(out)

	parser, err := kong.New(&cl,
		kong.Name("p11-tool"),
		kong.Description("CLI tool for PKCS#11 tokens"),
		kong.Writers(out, errout),
		kong.Exit(exit),
		ctl.BoolPtrMapper,
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.Current().String(),
		})
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args[1:])
	parser.FatalIfErrorf(err)

	if ctx != nil {
		if cl.Debug {
			// in DEBUG more print command line
			_, _ = fmt.Fprintf(ctx.Stdout, "#\n# %s\n#\n", strings.Join(args, " "))
		}
		err = ctx.Run(&cl.Cli)
		ctx.FatalIfErrorf(err)
	}
}
