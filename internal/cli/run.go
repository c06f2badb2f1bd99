package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/logx"
	"github.com/forPelevin/clipforge/internal/pipeline"
	"github.com/forPelevin/clipforge/internal/types"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Sample, encode, caption and title clips from a source video",
		Long: "Source may be a local file, an http(s) URL, an s3://bucket/key object " +
			"or anything yt-dlp understands.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}
	cmd.Flags().Int("length", 30, "Clip length in seconds")
	cmd.Flags().Int("count", 3, "Number of clips")
	cmd.Flags().String("aspect", "original", "Output aspect: original|vertical")
	cmd.Flags().String("out", "out", "Output directory")
	cmd.Flags().Int("concurrency", 2, "Clips processed in parallel")
	cmd.Flags().Bool("no-captions", false, "Skip caption burn-in (clips are still transcribed for titles)")
	cmd.Flags().Uint64("seed", 0, "Seed for reproducible sampling (0 is random)")
	return cmd
}

func run(cmd *cobra.Command, src string) error {
	cfg, err := loadConfig(cmd, os.Getenv)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := newLogger(cmd, cfg)

	log.Info("clipforge: %s", src)
	out, err := pipeline.Run(cmd.Context(), cfg, pipeline.Request{
		Source:   src,
		Logf:     log.Logf,
		Progress: progressPrinter(log),
	})
	if out.RunDir != "" && (len(out.Result.Clips) > 0 || len(out.Result.Manifest.Dropped) > 0) {
		renderReport(cmd.OutOrStdout(), out)
	}
	if err != nil {
		return err
	}
	if len(out.Result.Clips) == 0 {
		return errors.New("no clips were published")
	}
	log.Success("manifest: %s", out.ManifestPath)
	return nil
}

// applyRunFlags overrides config values with explicitly set flags only.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("length") {
		cfg.Clips.LengthSec, _ = f.GetInt("length")
	}
	if f.Changed("count") {
		cfg.Clips.Count, _ = f.GetInt("count")
	}
	if f.Changed("aspect") {
		cfg.Clips.Aspect, _ = f.GetString("aspect")
	}
	if f.Changed("out") {
		cfg.OutDir, _ = f.GetString("out")
	}
	if f.Changed("concurrency") {
		cfg.Clips.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("no-captions") {
		noCaptions, _ := f.GetBool("no-captions")
		cfg.Captions.Enabled = !noCaptions
	}
	if f.Changed("seed") {
		cfg.Clips.Seed, _ = f.GetUint64("seed")
	}
}

func progressPrinter(log *logx.Logger) func(types.ClipEvent) {
	return func(ev types.ClipEvent) {
		switch {
		case ev.State == types.StateDropped:
			log.Warn("clip %s dropped at %s: %v", ev.ClipID, ev.Stage, ev.Err)
		case ev.State == types.StatePublished:
			log.Info("clip %s published", ev.ClipID)
		case ev.Err != nil:
			log.Verbose("clip %s: %s: %v", ev.ClipID, ev.Stage, ev.Err)
		default:
			log.Debug("clip %s: %s at %s", ev.ClipID, ev.State, ev.At.Format("15:04:05.000"))
		}
	}
}

func renderReport(w io.Writer, out pipeline.Output) {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true)
	ok := r.NewStyle().Foreground(lipgloss.Color("#04B575"))
	bad := r.NewStyle().Foreground(lipgloss.Color("#FF5F56"))
	dim := r.NewStyle().Foreground(lipgloss.Color("#626262"))
	box := r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	m := out.Result.Manifest
	var b strings.Builder
	fmt.Fprintln(&b, title.Render(fmt.Sprintf("Run %s", out.RunID)))
	fmt.Fprintln(&b, dim.Render(out.RunDir))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, ok.Render(fmt.Sprintf("Published %d", len(m.Clips))))
	for _, c := range m.Clips {
		fmt.Fprintf(&b, "  %s  %s  %s\n", c.ID, formatWindow(c.StartSec, c.EndSec), c.Title)
		line := c.File
		if c.Captioned {
			line += "  (captioned)"
		}
		if len(c.Hashtags) > 0 {
			line += "  " + strings.Join(c.Hashtags, " ")
		}
		fmt.Fprintln(&b, dim.Render("       "+line))
		for _, warn := range c.Warnings {
			fmt.Fprintln(&b, bad.Render("       ! "+warn))
		}
	}
	if len(m.Dropped) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, bad.Render(fmt.Sprintf("Dropped %d", len(m.Dropped))))
		for _, d := range m.Dropped {
			fmt.Fprintf(&b, "  %s  %s: %s\n", d.ClipID, d.Stage, d.Reason)
		}
	}
	fmt.Fprintln(w, box.Render(strings.TrimRight(b.String(), "\n")))
}

func formatWindow(start, end float64) string {
	return fmt.Sprintf("%s-%s", clock(start), clock(end))
}

func clock(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
