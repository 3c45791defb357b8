package cli

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/effective-security/x/ctl"
	"github.com/stretchr/testify/suite"
)

type testSuite struct {
	suite.Suite

	tmp string
	ctl *Cli
	// Out is the output buffer
	Out bytes.Buffer
}

func (s *testSuite) SetupTest() {
	s.tmp = s.T().TempDir()

	// a config pointing at a module that can never load; commands that do
	// not touch the native layer run fine against it
	cfgFile := filepath.Join(s.tmp, "token.yaml")
	err := os.WriteFile(cfgFile, []byte("module: /does/not/exist/libfake.so\npin: \"1234\"\nkey: test_key_1024\n"), 0600)
	s.Require().NoError(err)

	s.Out.Reset()
	s.ctl = &Cli{}
	s.ctl.WithErrWriter(&s.Out).
		WithWriter(&s.Out)

	parser, err := kong.New(s.ctl,
		kong.Name("p11-tool"),
		kong.Description("CLI tool for PKCS#11 tokens"),
		kong.Writers(&s.Out, &s.Out),
		ctl.BoolPtrMapper,
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{})
	if err != nil {
		s.FailNow("unexpected error constructing Kong: %+v", err)
	}

	_, err = parser.Parse([]string{"--cfg", cfgFile})
	if err != nil {
		s.FailNow("unexpected error parsing: %+v", err)
	}
}

func (s *testSuite) TearDownTest() {
}

// HasText is a helper method to assert that the out stream contains the supplied
// text somewhere
func (s *testSuite) HasText(texts ...string) {
	outStr := s.Out.String()
	for _, t := range texts {
		s.Contains(outStr, t)
	}
}
