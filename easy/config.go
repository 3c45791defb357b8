package easy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Function declares the intended use of the configured key.
type Function string

// Supported key functions
const (
	FunctionSign   Function = "sign"
	FunctionVerify Function = "verify"
)

// PinSource produces the token PIN at login time.
// Exactly one variant is used per configuration: a literal string, a file
// reference, or a zero-argument secret provider.
type PinSource interface {
	pin() (string, error)
}

type pinLiteral string

func (p pinLiteral) pin() (string, error) {
	return string(p), nil
}

type pinFile string

func (p pinFile) pin() (string, error) {
	b, err := os.ReadFile(string(p))
	if err != nil {
		return "", errors.WithMessagef(err, "unable to read PIN file: %s", string(p))
	}
	return strings.TrimRight(string(b), " \t\r\n"), nil
}

type pinProvider func() (string, error)

func (p pinProvider) pin() (string, error) {
	return p()
}

// Pin returns a PinSource for a literal PIN.
func Pin(pin string) PinSource {
	return pinLiteral(pin)
}

// PinFromFile returns a PinSource that reads the PIN from a file,
// with trailing whitespace and end-of-line removed.
func PinFromFile(path string) PinSource {
	return pinFile(path)
}

// PinFromProvider returns a PinSource backed by a secret provider callback.
func PinFromProvider(provider func() (string, error)) PinSource {
	return pinProvider(provider)
}

// DefaultModuleDirs are scanned in order when the module is given by name
// rather than by path.
var DefaultModuleDirs = []string{
	"/usr/lib64/pkcs11",
	"/usr/lib/pkcs11",
	"/usr/lib/x86_64-linux-gnu/pkcs11",
	"/usr/lib/softhsm",
	"/usr/local/lib",
	"/usr/lib64",
	"/usr/lib",
}

// Config holds the construction parameters for a Client.
// It is not modified after New.
type Config struct {
	// Module is the native module name or path. A value containing a path
	// separator is used as-is; a bare name is searched in ModuleDirs with
	// the platform shared-library suffix appended.
	Module string

	// ModuleDirs overrides the candidate module search directories.
	ModuleDirs []string

	// RW opens the session read-write instead of read-only.
	RW bool

	// Key is the label of the key object used by Sign/Verify.
	Key string

	// Function is the intended use of the key, sign or verify.
	// Defaults to sign.
	Function Function

	// Slot selects the slot directly by id.
	Slot *uint

	// TokenLabel selects the slot by its token label. When neither Slot nor
	// TokenLabel is set, the slot is derived automatically only if exactly
	// one slot with a token is visible.
	TokenLabel string

	// Pin is the credential used for login.
	Pin PinSource
}

type fileConfig struct {
	Module     string   `json:"Module"     yaml:"module"`
	ModuleDirs []string `json:"ModuleDirs" yaml:"module_dirs"`
	RW         bool     `json:"Rw"         yaml:"rw"`
	Key        string   `json:"Key"        yaml:"key"`
	Function   string   `json:"Function"   yaml:"function"`
	Slot       *uint    `json:"Slot"       yaml:"slot"`
	TokenLabel string   `json:"TokenLabel" yaml:"token_label"`
	Pin        string   `json:"Pin"        yaml:"pin"`
}

// LoadConfig loads a Client configuration from a YAML or JSON file.
//
// A PIN prefixed with `file:` is resolved to a PIN file, relative to the
// current directory or to the directory of the configuration file.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	fc := new(fileConfig)
	if strings.HasSuffix(filename, ".json") {
		err = json.NewDecoder(f).Decode(fc)
	} else {
		err = yaml.NewDecoder(f).Decode(fc)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decode file: %s", filename)
	}

	cfg := &Config{
		Module:     fc.Module,
		ModuleDirs: fc.ModuleDirs,
		RW:         fc.RW,
		Key:        fc.Key,
		Function:   Function(fc.Function),
		Slot:       fc.Slot,
		TokenLabel: fc.TokenLabel,
	}

	if pin := fc.Pin; pin != "" {
		if strings.HasPrefix(pin, "file:") {
			pinfile := pin[5:]

			// try to resolve pin file
			cwd, _ := os.Getwd()
			folders := []string{
				"",
				cwd,
				filepath.Dir(filename),
			}

			for _, folder := range folders {
				if resolved, err := resolve(pinfile, folder); err == nil {
					pinfile = resolved
					break
				}
				logger.Warningf("reason=resolve, pinfile=%q, basedir=%q", pinfile, folder)
			}
			cfg.Pin = PinFromFile(pinfile)
		} else {
			cfg.Pin = Pin(pin)
		}
	}

	return cfg, nil
}

// resolve returns absolute file name relative to baseDir,
// or an error when the file does not exist.
func resolve(file string, baseDir string) (resolved string, err error) {
	if file == "" {
		return file, nil
	}
	if filepath.IsAbs(file) {
		resolved = file
	} else if baseDir != "" {
		resolved = filepath.Join(baseDir, file)
	}
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		return resolved, errors.WithMessagef(err, "not found: %v", resolved)
	}
	return resolved, nil
}
