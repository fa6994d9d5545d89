package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/beanledger/cli"
	"github.com/robinvdvleuten/beanledger/config"
)

var (
	// Version contains the application version number. It's set via ldflags
	// when building.
	Version = ""

	// CommitSHA contains the SHA of the commit that this application was built
	// against. It's set via ldflags when building.
	CommitSHA = ""
)

type app struct {
	Version kong.VersionFlag `help:"Show version information"`
	cli.Commands
}

func newParser(a *app, opts ...kong.Option) (*kong.Kong, error) {
	return kong.New(a, append([]kong.Option{
		kong.Vars{
			"version": buildVersion(),
		},
		kong.Name("beanledger"),
		kong.Description("Load, check, query and edit plain-text double-entry ledgers."),
		kong.UsageOnError(),
		kong.Bind(&a.Globals),
	}, opts...)...)
}

func main() {
	_ = config.LoadEnv("")

	var a app
	parser, err := newParser(&a)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func buildVersion() string {
	if Version == "" {
		Version = "dev"
	}
	if CommitSHA == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitSHA)
}
