package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"

	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/logx"
	"github.com/forPelevin/clipforge/internal/ports/adapters/source"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check configuration and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, os.Getenv)
			if err != nil {
				return err
			}
			log := newLogger(cmd, cfg)
			return validate(cfg, log, exec.LookPath, statFile)
		},
	}
}

type check struct {
	name string
	err  error
	// optional failures are reported but do not fail validation.
	optional bool
}

func statFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func validate(cfg *config.Config, log *logx.Logger, lookPath func(string) (string, error), stat func(string) error) error {
	checks := toolChecks(cfg, lookPath, stat)
	checks = append(checks, check{name: "configuration", err: cfg.Validate()})

	failed := 0
	for _, c := range checks {
		switch {
		case c.err == nil:
			log.Success("ok    %s", c.name)
		case c.optional:
			log.Warn("warn  %s: %v", c.name, c.err)
		default:
			failed++
			log.Error("fail  %s: %v", c.name, c.err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("validation failed: %d check(s)", failed)
	}
	return nil
}

func toolChecks(cfg *config.Config, lookPath func(string) (string, error), stat func(string) error) []check {
	onPath := func(bin string) error {
		if bin == "" {
			return errors.New("not configured")
		}
		_, err := lookPath(bin)
		return err
	}

	checks := []check{
		{name: "ffmpeg (" + cfg.Tools.FFmpeg + ")", err: onPath(cfg.Tools.FFmpeg)},
		{name: "ffprobe (" + cfg.Tools.FFprobe + ")", err: onPath(cfg.Tools.FFprobe)},
	}

	switch source.Kind(cfg.Source.Kind) {
	case source.KindYTDLP:
		checks = append(checks, check{name: "yt-dlp (" + cfg.Tools.YTDLP + ")", err: onPath(cfg.Tools.YTDLP)})
	case "", source.KindAuto:
		if cfg.Tools.YTDLP != "" {
			checks = append(checks, check{name: "yt-dlp (" + cfg.Tools.YTDLP + ")", err: onPath(cfg.Tools.YTDLP), optional: true})
		}
	}

	if cfg.Captions.Enabled && slices.Contains(cfg.Transcription.Providers, config.ProviderWhisperCPP) {
		t := cfg.Transcription
		// whisper.cpp is optional when a later provider can take over.
		optional := len(t.Providers) > 1
		checks = append(checks,
			check{name: "whisper.cpp (" + t.WhisperBin + ")", err: onPath(t.WhisperBin), optional: optional},
			check{name: "whisper model (" + t.WhisperModel + ")", err: stat(t.WhisperModel), optional: optional},
		)
	}
	return checks
}

// printChecks is used by serve to surface missing tools at startup.
func printChecks(w io.Writer, checks []check) {
	for _, c := range checks {
		if c.err != nil {
			fmt.Fprintf(w, "warning: %s: %v\n", c.name, c.err)
		}
	}
}
