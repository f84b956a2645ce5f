package config

import (
	"flag"
	"strings"
	"time"
)

// stringList collects a repeatable flag
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Flags holds the command-line options
type Flags struct {
	ConfigPath  string
	PlayCommand string
	ListCommand string
	SiteIDs     stringList
	Volume      float64
	PlayTimeout time.Duration
	HTTPAddr    string
	Debug       bool
	IssueToken  string

	set map[string]bool
}

// ParseFlags parses args with a new flag set named name
func ParseFlags(name string, args []string) (*Flags, error) {
	f := &Flags{set: make(map[string]bool)}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "Path to YAML configuration file")
	fs.StringVar(&f.PlayCommand, "play-command", "", "Command to play WAV data from stdin (required)")
	fs.StringVar(&f.ListCommand, "list-command", "", "Command to list output devices")
	fs.Var(&f.SiteIDs, "site-id", "Hermes site id(s) to listen for (repeatable, default: all)")
	fs.Float64Var(&f.Volume, "volume", 1.0, "Volume scalar for output audio (0-1)")
	fs.DurationVar(&f.PlayTimeout, "play-timeout", 0, "Kill the play command after this long (0 = never)")
	fs.StringVar(&f.HTTPAddr, "http-addr", "", "Address for the bus and HTTP API")
	fs.BoolVar(&f.Debug, "debug", false, "Print DEBUG messages to the console")
	fs.StringVar(&f.IssueToken, "issue-token", "", "Print a bus token for the given client id and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(fl *flag.Flag) {
		f.set[fl.Name] = true
	})

	return f, nil
}

// ApplyFlags overrides the configuration with every flag given explicitly
func (c *Config) ApplyFlags(f *Flags) {
	if f.set["play-command"] {
		c.Audio.PlayCommand = f.PlayCommand
	}
	if f.set["list-command"] {
		c.Audio.ListCommand = f.ListCommand
	}
	if f.set["site-id"] {
		c.Audio.SiteIDs = []string(f.SiteIDs)
	}
	if f.set["volume"] {
		c.Audio.Volume = f.Volume
	}
	if f.set["play-timeout"] {
		c.Audio.PlayTimeout = f.PlayTimeout
	}
	if f.set["http-addr"] {
		c.Server.HTTPAddr = f.HTTPAddr
	}
	if f.Debug {
		c.Log.Level = "debug"
		c.Log.Format = "console"
	}
}
