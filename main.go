package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"preface-cli/internal/api"
	"preface-cli/internal/config"
	"preface-cli/internal/display"
	"preface-cli/internal/logger"
	"preface-cli/internal/render"
	"preface-cli/internal/service"
	"preface-cli/internal/stream"
	"preface-cli/internal/tui"
)

const version = "0.1.0"

var (
	activeProfile string
	debugMode     bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		display.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logCloser io.Closer

	root := &cobra.Command{
		Use:           "preface",
		Short:         "Preface CLI: write with a streaming generation service",
		Long:          "Preface streams generated text and types it out as it arrives.\nRun without a command to start the interactive mode.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// serve configures its own logger.
			if !debugMode || cmd.Name() == "serve" {
				return nil
			}
			path, err := debugLogPath()
			if err != nil {
				return err
			}
			logCloser, err = logger.InitFile("debug", path)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(version, activeProfile)
		},
	}
	root.SetVersionTemplate("preface {{.Version}}\n")

	root.PersistentFlags().StringVar(&activeProfile, "profile", "", "use a named config profile")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "write debug logs to ~/.preface/preface.log")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newSetCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newProfilesCmd())
	root.AddCommand(newFavoriteCmd())
	root.AddCommand(newRecordsCmd("favorites", "List favorited prompts"))
	root.AddCommand(newRecordsCmd("history", "List past prompts"))
	root.AddCommand(newVersionCmd())

	return root
}

func debugLogPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "preface.log"), nil
}

// loadReady loads the active profile and checks it can reach the server.
func loadReady() (*config.Config, error) {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ─── generate ───────────────────────────────────────────────────────────────

func newGenerateCmd() *cobra.Command {
	var (
		markdown bool
		copyOut  bool
		speedMS  int
	)
	cmd := &cobra.Command{
		Use:     "generate <text...>",
		Aliases: []string{"gen", "write"},
		Short:   "Generate text and type it out as it streams",
		Example: `  preface generate "a short welcome note for new users"
  preface generate --markdown --copy "release notes for v2"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadReady()
			if err != nil {
				return err
			}
			if speedMS > 0 {
				cfg.TypingSpeedMS = speedMS
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runGenerate(ctx, cmd.OutOrStdout(), api.NewClient(cfg), cfg, strings.Join(args, " "), generateOptions{
				markdown: markdown,
				copy:     copyOut,
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the finished result as markdown instead of typing it")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy the result to the clipboard")
	cmd.Flags().IntVar(&speedMS, "speed", 0, "typing delay per character in milliseconds")
	return cmd
}

type generateOptions struct {
	markdown bool
	copy     bool
}

// Replaced in tests.
var writeClipboard = clipboard.WriteAll

func runGenerate(ctx context.Context, out io.Writer, src stream.Source, cfg *config.Config, prompt string, opts generateOptions) error {
	tw := display.NewTypewriter(out)
	streamOpts := stream.Options{
		TypingPeriod: cfg.TypingPeriod(),
		IdlePeriod:   cfg.IdlePeriod(),
	}
	if opts.markdown {
		// Nothing is typed; drain as fast as the timer allows and render
		// the finished result once.
		streamOpts.TypingPeriod = time.Microsecond
	} else {
		streamOpts.OnUpdate = tw.Update
	}

	ctrl := stream.NewController(streamOpts)
	s, err := ctrl.Start(ctx, src, cfg.OpenID, prompt)
	if err != nil {
		return err
	}
	logger.Debugf("generate: session %s started", s.ID)

	if opts.markdown {
		display.Spinner("Generating...")
	}

	if err := s.Wait(ctx); err != nil || ctx.Err() != nil {
		ctrl.Cancel()
		if opts.markdown {
			display.ClearLine()
		}
		fmt.Fprintln(out)
		display.Warn("Generation stopped")
		return nil
	}

	rs := s.Snapshot()
	if opts.markdown {
		display.ClearLine()
		if rs.State != stream.ErroredBeforeSend {
			if err := printMarkdown(out, rs.Sections); err != nil {
				return err
			}
		}
	} else {
		// Done closes before the last update is delivered.
		tw.Update(rs)
		if tw.Printed() > 0 {
			fmt.Fprintln(out)
		}
	}

	if rs.State != stream.Completed {
		fmt.Fprintf(out, "%s\n", display.StateLabel(rs.State))
	}
	switch rs.State {
	case stream.ErroredBeforeSend:
		return fmt.Errorf("generation failed: %s", rs.Err)
	case stream.ErroredInBand:
		return fmt.Errorf("generation stopped by an error: %s", rs.Err)
	}

	fmt.Fprintln(out)
	display.Success("Done")
	if rs.PromptID != "" {
		cfg.LastPromptID = rs.PromptID
		if err := cfg.Save(); err != nil {
			logger.Warnf("generate: saving last prompt id: %v", err)
		}
		fmt.Fprintf(out, "  %sTip:%s Run %spreface favorite add%s to save this result.\n",
			display.Dim, display.Reset, display.Cyan, display.Reset)
	}

	if opts.copy {
		if rs.Text == "" {
			display.Warn("No content to copy")
		} else if err := writeClipboard(rs.Text); err != nil {
			return fmt.Errorf("copying result: %w", err)
		} else {
			display.Success("Copied to clipboard")
		}
	}
	return nil
}

func printMarkdown(out io.Writer, sections []stream.Section) error {
	r, err := render.New(100, "")
	if err != nil {
		return err
	}
	rendered, err := r.Render(sections)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

// ─── set ────────────────────────────────────────────────────────────────────

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: `Set a config value in the active profile.

Keys:
  server   Preface server URL  (e.g. http://localhost:8080)
  openid   Your user id
  speed    Typing delay per character, in milliseconds`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdSet(args[0], args[1])
		},
	}
}

func cmdSet(key, value string) error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	switch key {
	case "server":
		cfg.Server = strings.TrimRight(value, "/")
	case "openid":
		cfg.OpenID = value
	case "speed":
		ms, err := strconv.Atoi(value)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid speed %q: want a positive number of milliseconds", value)
		}
		cfg.TypingSpeedMS = ms
	default:
		return fmt.Errorf("unknown config key: %s (valid: server, openid, speed)", key)
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	display.Success(fmt.Sprintf("%s set to %s", key, value))
	return nil
}

// ─── config ─────────────────────────────────────────────────────────────────

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdConfig()
		},
	}
}

func cmdConfig() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	notSet := display.Dim + "(not set)" + display.Reset
	orNotSet := func(s string) string {
		if s == "" {
			return notSet
		}
		return s
	}

	display.Header("Preface CLI Configuration")
	display.Info("Profile:", config.ProfileName(activeProfile))
	display.Info("Server:", orNotSet(cfg.Server))
	display.Info("OpenID:", orNotSet(cfg.OpenID))
	display.Info("Typing speed:", cfg.TypingPeriod().String())
	display.Info("Idle poll:", cfg.IdlePeriod().String())
	display.Info("Last prompt:", orNotSet(cfg.LastPromptID))
	fmt.Println()

	return nil
}

// ─── profiles ───────────────────────────────────────────────────────────────

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List all config profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdProfiles()
		},
	}
}

func cmdProfiles() error {
	profiles, err := config.ListProfiles()
	if err != nil {
		return err
	}

	display.Header(fmt.Sprintf("Profiles (%d)", len(profiles)))

	if len(profiles) == 0 {
		display.Warn("No profiles found.")
		return nil
	}

	for _, p := range profiles {
		marker := " "
		if p == config.ProfileName(activeProfile) {
			marker = display.Green + "●" + display.Reset
		}
		fmt.Printf("  %s %s\n", marker, p)
	}
	fmt.Println()

	return nil
}

// ─── favorite ───────────────────────────────────────────────────────────────

func newFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite [add|remove] [promptId]",
		Short: "Add or remove a favorite (defaults to the last generation)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadReady()
			if err != nil {
				return err
			}
			action, promptID, err := parseFavoriteArgs(args, cfg.LastPromptID)
			if err != nil {
				return err
			}
			return cmdFavorite(api.NewClient(cfg), cfg.OpenID, action, promptID)
		},
	}
}

// parseFavoriteArgs accepts "", "<id>", "add|remove" and "add|remove <id>".
func parseFavoriteArgs(args []string, lastPromptID string) (action, promptID string, err error) {
	action = api.FavoriteAdd
	promptID = lastPromptID

	switch len(args) {
	case 1:
		if args[0] == api.FavoriteAdd || args[0] == api.FavoriteRemove {
			action = args[0]
		} else {
			promptID = args[0]
		}
	case 2:
		if args[0] != api.FavoriteAdd && args[0] != api.FavoriteRemove {
			return "", "", fmt.Errorf("unknown action %q (valid: %s, %s)", args[0], api.FavoriteAdd, api.FavoriteRemove)
		}
		action, promptID = args[0], args[1]
	}

	if promptID == "" {
		return "", "", errors.New("no prompt id given and no previous generation. Usage: preface favorite [add|remove] <promptId>")
	}
	return action, promptID, nil
}

func cmdFavorite(client api.PrefaceAPI, openid, action, promptID string) error {
	if err := client.SetFavorite(openid, promptID, action); err != nil {
		return err
	}
	if action == api.FavoriteRemove {
		display.Success(fmt.Sprintf("Removed %s from favorites", promptID))
	} else {
		display.Success(fmt.Sprintf("Added %s to favorites", promptID))
	}
	return nil
}

// ─── favorites, history ─────────────────────────────────────────────────────

func newRecordsCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [page]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid page %q", args[0])
				}
				page = n
			}
			cfg, err := loadReady()
			if err != nil {
				return err
			}
			return cmdRecords(api.NewClient(cfg), cfg.OpenID, name == "favorites", page)
		},
	}
}

func cmdRecords(client api.PrefaceAPI, openid string, favorites bool, page int) error {
	title := "History"
	load := client.History
	if favorites {
		title = "Favorites"
		load = client.Favorites
	}

	display.Spinner(fmt.Sprintf("Loading %s...", strings.ToLower(title)))
	list, err := load(openid, page)
	display.ClearLine()
	if err != nil {
		return fmt.Errorf("loading %s: %w", strings.ToLower(title), err)
	}

	rows := service.FormatRecords(list, favorites)
	display.Header(fmt.Sprintf("%s (page %d, %d)", title, service.PageOrDefault(list.Page), len(rows)))

	if len(rows) == 0 {
		display.Warn("Nothing here yet.")
		return nil
	}

	for _, r := range rows {
		fmt.Printf("  %s %s\n", display.FavLabel(r.Favorite), r.Prompt)
		meta := r.Key
		if r.Date != "" {
			meta += "  " + display.FormatTime(r.Date)
		}
		fmt.Printf("    %s%s%s\n", display.Dim, meta, display.Reset)
		if r.Response != "" {
			fmt.Printf("    %s↳ %s%s\n", display.Dim, r.Response, display.Reset)
		}
	}
	fmt.Println()

	return nil
}

// ─── version ────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "preface %s\n", version)
			return err
		},
	}
}
