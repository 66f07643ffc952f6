package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"streammark/internal/config"
	"streammark/internal/diagram"
	"streammark/internal/events"
	"streammark/internal/logger"
	"streammark/internal/mount"
	"streammark/internal/render"
	"streammark/internal/segment"
	"streammark/internal/source"
	"streammark/internal/surface"
	"streammark/internal/tui"
)

var log = logger.Named("main")

func main() {
	logger.Configure()

	cli, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("parse args: %v", err)
	}

	cfg, err := config.Load(cli.cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg = config.ApplyKVOverrides(cfg, []string(cli.overrides))

	logPath := cfg.LogPath
	if logPath == "" {
		logPath = logger.DefaultLogPath
	}
	if logFile, _, err := logger.SetupFile(logPath); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}

	src, title, err := buildSource(cli, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cli.title != "" {
		title = cli.title
	}

	segmenter := segment.New(segment.Options{DiagramTags: cfg.DiagramTags})

	markdown := render.NewMarkdownRenderer(render.MarkdownOptions{
		Theme: cfg.Theme,
		Width: cfg.Width,
	})
	code := render.NewCodeRenderer(render.CodeOptions{Theme: cfg.CodeTheme})
	diagrams := render.NewDiagramRenderer(render.DiagramOptions{
		Engines: map[string]render.DiagramEngine{
			"mermaid": diagram.NewFlowchartEngine(),
		},
	})

	registry := render.NewRegistry(render.RegistryOptions{})
	registry.Register(markdown)
	registry.Register(code)
	registry.Register(diagrams)

	surf := surface.NewMemory()
	controller := mount.New(mount.Options{
		Surface:   surf,
		Registry:  registry,
		Segmenter: segmenter,
		Bus:       events.NewBus(64),
	})
	defer controller.Close()

	if cli.plain {
		if err := runPlain(controller, surf, markdown, src, cfg.Width); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	result, err := tui.Run(tui.Options{
		Controller: controller,
		Surface:    surf,
		Source:     src,
		Markdown:   markdown,
		Code:       code,
		Config:     cfg,
		ConfigPath: cfg.Source,
		Title:      title,
	})
	if err != nil {
		log.Fatalf("program exit: %v", err)
	}
	if result.StreamErr != nil {
		log.Warnf("stream ended with error: %v", result.StreamErr)
		fmt.Fprintf(os.Stderr, "stream error: %v\n", result.StreamErr)
		os.Exit(1)
	}
}

// buildSource picks the delta source: -p asks the configured model, -f (or a
// positional path) replays a file, otherwise stdin is consumed as a pipe.
func buildSource(cli *cliArgs, cfg config.Config) (source.Source, string, error) {
	if cli.prompt != "" {
		src, err := source.NewOpenAI(source.OpenAIOptions{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			System:  cli.system,
			Prompt:  cli.prompt,
		})
		if err != nil {
			return nil, "", err
		}
		return src, cli.prompt, nil
	}
	if cli.file != "" {
		data, err := os.ReadFile(cli.file)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", cli.file, err)
		}
		return source.Replay{
			Text:      string(data),
			ChunkSize: cli.chunk,
			Interval:  cli.interval,
			ByWord:    cli.byWord,
		}, filepath.Base(cli.file), nil
	}
	stat, err := os.Stdin.Stat()
	if err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		return source.Reader{R: os.Stdin}, "stdin", nil
	}
	return nil, "", errors.New("nothing to render: pass a file, -p prompt, or pipe markdown on stdin")
}

// runPlain consumes the whole stream through the normal tick path and prints
// the final surface once. Useful for piping into a pager or a file.
func runPlain(controller *mount.Controller, surf *surface.Memory, markdown *render.MarkdownRenderer, src source.Source, width int) error {
	if width <= 0 {
		width = 100
	}
	markdown.SetWidth(width)

	ctx := context.Background()
	var buffer strings.Builder
	err := src.Stream(ctx, func(delta string) error {
		buffer.WriteString(delta)
		return controller.Update(ctx, buffer.String())
	})
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(surf.Children(), "\n\n"))
	return nil
}
