package cli

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/easypkcs11/easy"
	"github.com/effective-security/x/print"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/easypkcs11", "cli")

// Cli provides CLI context to run commands
type Cli struct {
	Cfg      string `help:"Location of the token config file" required:"" type:"path"`
	Pin      string `help:"Token PIN, overrides the config file"`
	Debug    bool   `short:"D" help:"Enable debug mode"`
	LogLevel string `short:"l" help:"Set the logging level (debug|info|warn|error)" default:"error"`

	// Stdin is the source to read from, typically set to os.Stdin
	stdin io.Reader
	// Output is the destination for all output from the command, typically set to os.Stdout
	output io.Writer
	// ErrOutput is the destinaton for errors.
	// If not set, errors will be written to os.StdError
	errOutput io.Writer

	client *easy.Client
}

// Reader is the source to read from, typically set to os.Stdin
func (c *Cli) Reader() io.Reader {
	if c.stdin != nil {
		return c.stdin
	}
	return os.Stdin
}

// WithReader allows to specify a custom reader
func (c *Cli) WithReader(reader io.Reader) *Cli {
	c.stdin = reader
	return c
}

// Writer returns a writer for control output
func (c *Cli) Writer() io.Writer {
	if c.output != nil {
		return c.output
	}
	return os.Stdout
}

// WithWriter allows to specify a custom writer
func (c *Cli) WithWriter(out io.Writer) *Cli {
	c.output = out
	return c
}

// ErrWriter returns a writer for control output
func (c *Cli) ErrWriter() io.Writer {
	if c.errOutput != nil {
		return c.errOutput
	}
	return os.Stderr
}

// WithErrWriter allows to specify a custom error writer
func (c *Cli) WithErrWriter(out io.Writer) *Cli {
	c.errOutput = out
	return c
}

// WithClient allows to specify a custom client, used in tests
func (c *Cli) WithClient(client *easy.Client) *Cli {
	c.client = client
	return c
}

// AfterApply hook loads config
func (c *Cli) AfterApply(app *kong.Kong, vars kong.Vars) error {
	if c.Debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		val := strings.TrimLeft(c.LogLevel, "=")
		l, err := xlog.ParseLevel(strings.ToUpper(val))
		if err != nil {
			return errors.WithStack(err)
		}
		xlog.SetGlobalLogLevel(l)
	}

	return nil
}

// WriteJSON prints response to out
func (c *Cli) WriteJSON(value interface{}) error {
	print.JSON(c.Writer(), value)
	return nil
}

// Client returns the configured token client
func (c *Cli) Client() *easy.Client {
	if c.client != nil {
		return c.client
	}
	if c.Cfg == "" {
		logger.Panicf("use --cfg flag to specify the token config file")
	}
	cfg, err := easy.LoadConfig(c.Cfg)
	if err != nil {
		logger.Panicf("unable to load token config: [%v]", err)
	}
	if c.Pin != "" {
		cfg.Pin = easy.Pin(c.Pin)
	}
	c.client, err = easy.New(*cfg)
	if err != nil {
		logger.Panicf("unable to create token client: [%v]", err)
	}
	return c.client
}
