package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mpataki/playcheck/internal/config"
	"github.com/mpataki/playcheck/internal/gateway"
	"github.com/mpataki/playcheck/internal/logging"
	"github.com/mpataki/playcheck/internal/media"
	"github.com/mpataki/playcheck/internal/models"
	"github.com/mpataki/playcheck/internal/rubric"
	"github.com/mpataki/playcheck/internal/storage"
	"github.com/mpataki/playcheck/internal/tui"
	"github.com/mpataki/playcheck/internal/workflow"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "playcheck",
		Short:        "Evaluate play spaces and toys against a design rubric",
		Long:         "Playcheck submits photos of a play space and a toy, with a short activity description, for evaluation and shows per-criterion feedback and improvement suggestions.",
		Version:      version,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	rootCmd.AddCommand(newSubmitCommand())
	rootCmd.AddCommand(newFeedbackCommand())
	rootCmd.AddCommand(newSuggestionsCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newDeleteCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// env is what every command needs: resolved config, logging and a backend
// client wired to error reporting.
type env struct {
	cfg     *config.Config
	client  *gateway.Client
	logFile *os.File
	sentry  bool
}

func setup(logToFile bool) (*env, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &env{cfg: cfg}
	if logToFile {
		f, err := logging.OpenFile(cfg.LogPath())
		if err != nil {
			return nil, err
		}
		e.logFile = f
		logging.Init(cfg.LogLevel, f)
	} else {
		logging.Init(cfg.LogLevel, os.Stderr)
	}

	opts := []gateway.Option{
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithRateLimit(cfg.RateLimit),
	}
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Release:          version,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Sentry disabled")
		} else {
			e.sentry = true
			opts = append(opts, gateway.WithServerErrorReporter(func(err error) {
				sentry.CaptureException(err)
			}))
		}
	}

	e.client = gateway.NewClient(cfg.BackendURL, opts...)
	log.Debug().Str("backend", e.client.BaseURL()).Msg("Configured")
	return e, nil
}

func (e *env) Close() {
	if e.sentry {
		sentry.Flush(2 * time.Second)
	}
	if e.logFile != nil {
		e.logFile.Close()
	}
}

func (e *env) openStorage() (*storage.Storage, error) {
	store, err := storage.New(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// loadRubric returns the configured rubric; without a script the built-in
// verdicts apply.
func (e *env) loadRubric() (*rubric.Rubric, func(), error) {
	if e.cfg.RubricPath == "" {
		return rubric.New(nil), func() {}, nil
	}
	rt, err := rubric.Load(e.cfg.RubricPath)
	if err != nil {
		return nil, nil, err
	}
	return rubric.New(rt), rt.Close, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := setup(true)
	if err != nil {
		return err
	}
	defer e.Close()

	store, err := e.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	rb, closeRubric, err := e.loadRubric()
	if err != nil {
		return err
	}
	defer closeRubric()

	app := tui.NewApp(e.client, tui.Options{
		Workflow: workflow.Options{ReloadDelay: e.cfg.ReloadDelay, Context: cmd.Context()},
		History:  store,
		Rubric:   rb,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
		return nil
	}
	return err
}

func newSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Submit photos and a description for evaluation",
		Example: `  playcheck submit --playground a.jpg --playground b.jpg --toy c.jpg -d "Fun swing set"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			playgroundPaths, _ := cmd.Flags().GetStringArray("playground")
			toyPaths, _ := cmd.Flags().GetStringArray("toy")
			description, _ := cmd.Flags().GetString("description")
			noSave, _ := cmd.Flags().GetBool("no-save")

			if len(playgroundPaths) == 0 || len(toyPaths) == 0 {
				return fmt.Errorf("at least one --playground and one --toy photo are required")
			}
			if len(playgroundPaths) > models.MaxImagesPerSlot || len(toyPaths) > models.MaxImagesPerSlot {
				return fmt.Errorf("at most %d photos per slot", models.MaxImagesPerSlot)
			}
			if !workflow.ValidDescription(description) {
				return fmt.Errorf("description must be 1 to %d characters", workflow.MaxDescriptionLength)
			}

			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			playground, err := media.LoadAll(playgroundPaths)
			if err != nil {
				return err
			}
			toy, err := media.LoadAll(toyPaths)
			if err != nil {
				return err
			}

			ctrl := workflow.New(e.client, workflow.Options{ReloadDelay: e.cfg.ReloadDelay, Context: cmd.Context()})
			ctrl.SetImages(models.SlotPlayground, playground)
			ctrl.Advance()
			ctrl.SetImages(models.SlotToy, toy)
			ctrl.Advance()
			ctrl.SetDescription(description)

			fmt.Fprintln(cmd.ErrOrStderr(), "Evaluating...")
			ctrl.Run(ctrl.Advance())

			state := ctrl.State()
			if state.Step != models.StepResult {
				return errors.New(state.LastError)
			}

			if !noSave {
				store, err := e.openStorage()
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.SaveSubmission(state.Submission); err != nil {
					log.Warn().Err(err).Msg("Saving history failed")
				}
			}

			rb, closeRubric, err := e.loadRubric()
			if err != nil {
				return err
			}
			defer closeRubric()

			printSubmission(cmd.OutOrStdout(), state.Submission, rb)
			return nil
		},
	}

	cmd.Flags().StringArray("playground", nil, "Playground photo (repeat up to 3 times)")
	cmd.Flags().StringArray("toy", nil, "Toy photo (repeat up to 3 times)")
	cmd.Flags().StringP("description", "d", "", "Activity description (1-240 characters)")
	cmd.Flags().Bool("no-save", false, "Do not store the result in local history")

	return cmd
}

func newFeedbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <submission-id>",
		Short: "Fetch the feedback of a submission from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			sub, err := e.client.GetFeedback(cmd.Context(), args[0])
			if err != nil {
				return errors.New(workflow.ErrorMessage(err))
			}

			rb, closeRubric, err := e.loadRubric()
			if err != nil {
				return err
			}
			defer closeRubric()

			printSubmission(cmd.OutOrStdout(), sub, rb)
			return nil
		},
	}
}

func newSuggestionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions <submission-id>",
		Short: "Show improvement suggestions for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			regenerate, _ := cmd.Flags().GetBool("regenerate")

			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			id := args[0]
			if regenerate {
				if err := e.client.RegenerateSuggestions(ctx, id); err != nil {
					return errors.New(workflow.ErrorMessage(err))
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Regeneration started, refreshing in %s...\n", e.cfg.ReloadDelay)
				select {
				case <-time.After(e.cfg.ReloadDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			s, err := e.client.GetSuggestions(ctx, id)
			if err != nil {
				return errors.New(workflow.ErrorMessage(err))
			}
			printSuggestions(cmd.OutOrStdout(), s)
			return nil
		},
	}

	cmd.Flags().Bool("regenerate", false, "Regenerate suggestions before showing them")

	return cmd
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List locally saved evaluations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.ListSubmissions(limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")

	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <submission-id>",
		Short: "Show a saved evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			sub, err := store.GetSubmission(args[0])
			if err != nil {
				return err
			}

			rb, closeRubric, err := e.loadRubric()
			if err != nil {
				return err
			}
			defer closeRubric()

			printSubmission(cmd.OutOrStdout(), sub, rb)
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <submission-id>",
		Short: "Delete a saved evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteSubmission(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
