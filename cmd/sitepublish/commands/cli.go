// Package commands implements the sitepublish command line.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitepublish/internal/config"
	"git.home.luguber.info/inful/sitepublish/internal/output"
)

// Global carries state shared by every command.
type Global struct {
	Logger *slog.Logger
}

// CLI is the command tree and global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"publish.yaml" type:"path"`
	Root      string           `short:"r" help:"Site root folder (defaults to the nearest folder above the configuration holding publish.yaml)" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format (tint, text or json)" default:"tint" enum:"tint,text,json"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Generate GenerateCmd `cmd:"" help:"Generate the site into the output folder"`
	Deploy   DeployCmd   `cmd:"" help:"Deploy the existing output folder"`
	Publish  PublishCmd  `cmd:"" help:"Generate the site and deploy it"`
	Watch    WatchCmd    `cmd:"" help:"Regenerate whenever content changes"`
	History  HistoryCmd  `cmd:"" help:"List recent publishing runs"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := "info"
	if c.Verbose {
		level = "debug"
	}
	handler, err := output.NewHandler(os.Stderr, c.LogFormat, level)
	if err != nil {
		return err
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

// loadConfig reads the configuration named by the global flags.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.Config)
}
