package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phrazzld/studbud/internal/content"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/session"
)

// generateOptions are the flags of the generate command. Exactly one of
// file, text and topic is set.
type generateOptions struct {
	file   string
	text   string
	topic  string
	mode   string
	count  int
	search bool
}

// generateOutput is what the generate command prints.
type generateOutput struct {
	Mode              domain.GenerationMode `json:"mode"`
	UseExternalSearch bool                  `json:"use_external_search"`
	Items             []domain.StudyItem    `json:"items"`
	Sources           []domain.Source       `json:"sources"`
}

// errInsufficient is returned when the content is too thin and --search was
// not given.
var errInsufficient = errors.New("not enough content to generate from")

func generateCmd(configPath *string) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate study items once and print them as JSON",
		Example: `  studbud generate --file notes.pdf --mode quiz --count 5
  studbud generate --topic "the krebs cycle" --count 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadAppConfig(*configPath)
			if err != nil {
				return err
			}

			app, err := initializeApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			return app.generateOnce(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Read study material from a file (txt, md, html, pdf, docx, images)")
	cmd.Flags().StringVar(&opts.text, "text", "", "Use the given text as study material")
	cmd.Flags().StringVar(&opts.topic, "topic", "", "Research a topic with web search")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "flashcards or quiz (default from config)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Number of items, 1 to 100 (default from config)")
	cmd.Flags().BoolVar(&opts.search, "search", false, "Fall back to web research when the content is too thin")
	cmd.MarkFlagsOneRequired("file", "text", "topic")
	cmd.MarkFlagsMutuallyExclusive("file", "text", "topic")

	return cmd
}

// generateOnce drives one session from submission to results and writes them
// to out.
func (app *application) generateOnce(ctx context.Context, opts generateOptions, out io.Writer) error {
	in, err := app.generateInput(opts)
	if err != nil {
		return err
	}

	s := app.sessions.Create(ctx)
	defer func() {
		_ = app.sessions.Remove(context.Background(), s.ID())
	}()

	if err := s.Submit(ctx, in); err != nil {
		return err
	}

	switch snap := s.Snapshot(); snap.Phase {
	case session.PhaseError:
		return errors.New(snap.Error)
	case session.PhaseInsufficientContent:
		if !opts.search {
			return fmt.Errorf("%w; rerun with --search to research %q", errInsufficient, snap.Seed)
		}
		if err := s.AcceptSearch(); err != nil {
			return err
		}
	}

	snap := s.Snapshot()
	mode := snap.Mode
	if opts.mode != "" {
		if mode, err = domain.ParseMode(opts.mode); err != nil {
			return err
		}
	}
	count := snap.Count
	if opts.count != 0 {
		count = opts.count
	}

	done, err := s.Start(mode, count)
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	snap = s.Snapshot()
	if snap.Phase != session.PhaseViewing {
		return errors.New(snap.Error)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(generateOutput{
		Mode:              snap.Mode,
		UseExternalSearch: snap.UseExternalSearch,
		Items:             snap.Items,
		Sources:           snap.Sources,
	})
}

func (app *application) generateInput(opts generateOptions) (content.Input, error) {
	switch {
	case opts.file != "":
		info, err := os.Stat(opts.file)
		if err != nil {
			return content.Input{}, fmt.Errorf("failed to read %s: %w", opts.file, err)
		}
		if info.Size() > app.config.Content.MaxFileBytes {
			return content.Input{}, fmt.Errorf("%s exceeds the %d MB limit",
				opts.file, app.config.Content.MaxFileBytes>>20)
		}
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return content.Input{}, fmt.Errorf("failed to read %s: %w", opts.file, err)
		}
		return content.Input{File: &content.File{
			Name: filepath.Base(opts.file),
			Size: int64(len(data)),
			Data: data,
		}}, nil
	case opts.text != "":
		return content.Input{Text: opts.text}, nil
	case opts.topic != "":
		return content.Input{Topic: opts.topic}, nil
	default:
		return content.Input{}, errors.New("one of --file, --text or --topic is required")
	}
}
