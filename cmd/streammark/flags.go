package main

import (
	"flag"
	"strings"
	"time"
)

type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type cliArgs struct {
	cfgPath   string
	overrides stringSlice

	file     string
	prompt   string
	system   string
	byWord   bool
	chunk    int
	interval time.Duration
	plain    bool
	title    string
}

func parseArgs(args []string) (*cliArgs, error) {
	cli := &cliArgs{}
	fs := flag.NewFlagSet("streammark", flag.ContinueOnError)
	fs.StringVar(&cli.cfgPath, "config", "", "Config file path (default ~/.streammark/config.toml)")
	fs.Var(&cli.overrides, "c", "Override config value key=value (repeatable)")
	fs.StringVar(&cli.file, "f", "", "Replay a markdown file as a simulated stream")
	fs.StringVar(&cli.prompt, "p", "", "Ask the configured model and render its streamed answer")
	fs.StringVar(&cli.system, "system", "", "System prompt for -p")
	fs.BoolVar(&cli.byWord, "words", false, "Replay on word boundaries instead of fixed rune chunks")
	fs.IntVar(&cli.chunk, "chunk", 0, "Replay chunk size in runes (0 uses the default)")
	fs.DurationVar(&cli.interval, "interval", 30*time.Millisecond, "Pause between replayed deltas")
	fs.BoolVar(&cli.plain, "plain", false, "Render once to stdout instead of the live view")
	fs.StringVar(&cli.title, "title", "", "Live view title")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	// 位置参数等价于 -f，方便 `streammark README.md` 直接用。
	if rest := fs.Args(); len(rest) > 0 && cli.file == "" {
		cli.file = rest[0]
	}
	return cli, nil
}
