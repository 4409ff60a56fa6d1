package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/steadiczech/games-devkit/internal/app"
	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/config"
	"github.com/steadiczech/games-devkit/internal/domain"
	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/pkg/gamesclient"
)

// state is shared between the root command and its subcommands.
type state struct {
	gamesFile string
	cfg       *config.Config
	log       logger.Logger
}

// NewRootCommand builds the gamesctl command tree.
func NewRootCommand() *cobra.Command {
	st := &state{}

	rootCmd := &cobra.Command{
		Use:           "gamesctl",
		Short:         "Maintain the games file and talk to a running dev server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&st.gamesFile, "file", "", "games file (overrides GAMES_FILE)")

	rootCmd.AddCommand(NewMigrateCommand(st))
	rootCmd.AddCommand(NewHistoryCommand(st))
	rootCmd.AddCommand(NewRestoreCommand(st))
	rootCmd.AddCommand(NewListCommand(st))
	rootCmd.AddCommand(NewAddCommand(st))
	return rootCmd
}

func (st *state) load() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if st.gamesFile != "" {
		cfg.GamesFile = st.gamesFile
	}
	st.cfg = cfg
	st.log = logger.New(cfg.LogLevel, os.Stderr)
	return nil
}

// NewMigrateCommand rewrites legacy image and url values in the games file.
func NewMigrateCommand(st *state) *cobra.Command {
	var (
		baseURL   string
		rulesFile string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite legacy hardcoded game links to the configured base URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if baseURL != "" {
				st.cfg.BaseURL = baseURL
			}
			if rulesFile != "" {
				st.cfg.MigrateRulesFile = rulesFile
			}
			if err := st.cfg.Finalize(); err != nil {
				return err
			}

			m, err := app.NewMigrator(cmd.Context(), st.cfg, dryRun, st.log)
			if err != nil {
				return err
			}
			res, err := m.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case !res.Exists:
				fmt.Fprintf(out, "%s not found, nothing to migrate\n", st.cfg.GamesPath())
			case len(res.Changes) == 0:
				fmt.Fprintln(out, "no legacy links found")
			default:
				for _, c := range res.Changes {
					fmt.Fprintf(out, "[%d] %s %s: %s -> %s\n", c.Index, c.Title, c.Field, c.Old, c.New)
				}
				verb := "updated"
				if res.DryRun {
					verb = "would be updated (dry run)"
				}
				fmt.Fprintf(out, "%d field(s) %s in %s\n", len(res.Changes), verb, st.cfg.GamesPath())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL for derived links (overrides BASE_URL)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML or JSON file listing legacy markers")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing")
	return cmd
}

// NewHistoryCommand lists the saved snapshots of the games file.
func NewHistoryCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List snapshots of the games file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := app.OpenHistory(st.cfg, st.log)
			if err != nil {
				return err
			}
			defer h.Close()

			snaps, err := h.List()
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TAKEN AT\tBYTES")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%d\n", s.TakenAt.Local().Format(time.RFC3339), s.Size())
			}
			return tw.Flush()
		},
	}
}

// NewRestoreCommand writes the newest snapshot back to the games file.
func NewRestoreCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the games file from its newest snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := app.OpenHistory(st.cfg, st.log)
			if err != nil {
				return err
			}
			defer h.Close()

			snap, err := h.Restore()
			if errors.Is(err, app.ErrNoSnapshot) {
				return fmt.Errorf("%s: %w", st.cfg.GamesPath(), err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from snapshot taken %s\n",
				st.cfg.GamesPath(), snap.TakenAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}

// NewListCommand prints the games served by a running dev server.
func NewListCommand(st *state) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List games from a running dev server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := st.client(serverURL).List(cmd.Context())
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "dev server base URL (defaults to BASE_URL)")
	return cmd
}

// NewAddCommand posts a game to a running dev server.
func NewAddCommand(st *state) *cobra.Command {
	var (
		serverURL string
		game      gamesclient.Game
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a game through a running dev server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			game.Title = strings.TrimSpace(game.Title)
			if game.Title == "" {
				return errors.New("--title is required")
			}
			if !cmd.Flags().Changed("image") {
				game.Image = catalog.GameImagePath(game.Title)
			}
			if err := st.client(serverURL).Save(cmd.Context(), game); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %q\n", game.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&game.Title, "title", "", "game title (required)")
	cmd.Flags().StringVar(&game.Image, "image", "", "cover image (defaults to /games/<slug>/cover.png)")
	cmd.Flags().StringVar(&game.Description, "description", "", "game description")
	cmd.Flags().StringVar(&serverURL, "server", "", "dev server base URL (defaults to BASE_URL)")
	return cmd
}

func (st *state) client(serverURL string) *gamesclient.Client {
	if serverURL == "" {
		serverURL = st.cfg.BaseURL
	}
	return gamesclient.New(serverURL, gamesclient.WithPaths(st.cfg.ListPath(), st.cfg.AppendPath))
}

func printRecords(w io.Writer, records []domain.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no games")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tIMAGE")
	for i, rec := range records {
		image, _ := rec.Get(domain.KeyImage)
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, rec.Title(), image)
	}
	_ = tw.Flush()
}
