package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"smartmirror/internal/app"
	"smartmirror/internal/crontab"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mirror: %s\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	a := cli.NewApp()
	a.Name = "mirror"
	a.HelpName = "mirror"
	a.Usage = "render modules onto a framebuffer or image file"
	a.UsageText = "mirror [--config FILE] [command] [arguments...]"
	a.Version = version
	a.Writer = out
	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "config.json",
			Usage: "configuration file (JSON or YAML)",
		},
		cli.StringFlag{
			Name:  "frame-buffer",
			Usage: "framebuffer device, overrides screen.frame_buffer (\"None\" disables)",
		},
		cli.StringFlag{
			Name:  "output-file",
			Usage: "image file written every frame, overrides screen.output_file (\"None\" disables)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "trace, debug, info, warn or error",
		},
	}
	a.Action = run
	a.Commands = []cli.Command{
		{
			Name:      "cron",
			Usage:     "show the canonical form and next fire times of recurrence rules",
			ArgsUsage: "<rule> [rule...]",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "next, n", Value: 3, Usage: "number of fire times to list"},
			},
			Action: cronCmd,
		},
	}
	return a
}

func run(c *cli.Context) error {
	if c.NArg() > 0 {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}
	m, err := app.New(c.GlobalString("config"), app.Overrides{
		FrameBuffer: c.GlobalString("frame-buffer"),
		OutputFile:  c.GlobalString("output-file"),
		LogLevel:    c.GlobalString("log-level"),
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return m.Run(ctx)
}

func cronCmd(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowCommandHelp(c, c.Command.Name)
	}
	return printRules(c.App.Writer, c.Args(), c.Int("next"), time.Now())
}

func printRules(w io.Writer, specs []string, n int, from time.Time) error {
	for _, s := range specs {
		r, err := crontab.ParseRule(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n  canonical: %s\n", s, r.Canonical)
		at := from
		for i := 0; i < n; i++ {
			next, err := crontab.NextAfter(r, at)
			if err != nil {
				fmt.Fprintf(w, "  next: unavailable (%s)\n", err)
				break
			}
			fmt.Fprintf(w, "  next: %s\n", next.Format(time.RFC1123))
			at = next
		}
	}
	return nil
}
