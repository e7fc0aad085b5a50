// Command aquarana decodes, plays and inspects CELT-only Ogg Opus files.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/mycrl/aquarana"
	"github.com/mycrl/aquarana/internal/config"
)

// runner carries the settings shared by every command. Before fills it in.
type runner struct {
	cfg *config.Config
	log *slog.Logger
}

func main() {
	r := &runner{}
	app := &cli.App{
		Name:  "aquarana",
		Usage: "Decode CELT-only Ogg Opus streams",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides AQUARANA_LOG_LEVEL)",
			},
		},
		Before: r.setup,
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Decode an Ogg Opus file to a 16-bit WAV file",
				ArgsUsage: "<in.opus>",
				Flags: append(streamFlags(),
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "output WAV path (default: input name with .wav)",
					},
				),
				Action: r.decode,
			},
			{
				Name:      "play",
				Usage:     "Play an Ogg Opus file on the default output device",
				ArgsUsage: "<in.opus>",
				Flags:     streamFlags(),
				Action:    r.play,
			},
			{
				Name:      "inspect",
				Usage:     "Print the headers and a per-packet TOC summary",
				ArgsUsage: "<in.opus>",
				Action:    r.inspect,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("aquarana: %v", err)
	}
}

func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "gain",
			Usage: "apply the OpusHead output gain (overrides AQUARANA_APPLY_GAIN)",
		},
		&cli.BoolFlag{
			Name:  "preskip",
			Usage: "drop the OpusHead pre-skip samples (overrides AQUARANA_TRIM_PRESKIP)",
		},
	}
}

// setup loads the environment config and builds the logger.
func (r *runner) setup(c *cli.Context) error {
	if err := config.LoadEnv(); err != nil {
		return fmt.Errorf("load .env file: %w", err)
	}
	cfg, err := config.NewConfigFromEnv(c.Context)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("log-level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(c.String("log-level"))); err != nil {
			return cli.Exit(fmt.Sprintf("invalid --log-level: %v", err), 2)
		}
	}
	r.cfg = cfg
	r.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return nil
}

// streamOptions merges the config with the command's flags.
func (r *runner) streamOptions(c *cli.Context) []aquarana.StreamOption {
	gain, trim := r.cfg.ApplyGain, r.cfg.TrimPreSkip
	if c.IsSet("gain") {
		gain = c.Bool("gain")
	}
	if c.IsSet("preskip") {
		trim = c.Bool("preskip")
	}
	return []aquarana.StreamOption{
		aquarana.WithLogger(r.log),
		aquarana.WithOutputGain(gain),
		aquarana.WithPreSkip(trim),
	}
}

// inputPath returns the single positional argument.
func inputPath(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: aquarana %s %s", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().First(), nil
}

// openStream opens path and reads its Ogg Opus headers.
func (r *runner) openStream(c *cli.Context, path string) (*aquarana.StreamDecoder, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	s, err := aquarana.NewStreamDecoder(f, r.streamOptions(c)...)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, func() { f.Close() }, nil
}
