package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"markestedt/spark/config"
	"markestedt/spark/platform"
	"markestedt/spark/render"
	"markestedt/spark/snippet"
	"markestedt/spark/snippetio"
	"markestedt/spark/storage"
)

// newCLIApp creates the CLI application with all commands
func newCLIApp(stdout io.Writer) *cli.App {
	app := &cli.App{
		Name:    "spark",
		Usage:   "Text expansion for every application",
		Version: Version,
		Writer:  stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"SPARK_CONFIG"}, Usage: "Path to config.toml"},
		},
		Commands: []*cli.Command{
			runCmd(),
			renderCmd(),
			snippetCmd(),
			importCmd(),
			exportCmd(),
			statsCmd(),
		},
		Action: runAction,
	}
	// Errors are printed by main
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// env is the loaded configuration and open snippet store for one command
type env struct {
	cfg        *config.Config
	configPath string
	db         *storage.DB
}

func (e *env) Close() {
	e.db.Close()
}

// loadEnv reads the config and opens the snippet store
func loadEnv(c *cli.Context) (*env, error) {
	configPath := c.String("config")
	if configPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(os.Stderr, cfg.Logging)

	db, err := storage.Open(cfg.DatabasePath(filepath.Dir(configPath)))
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, configPath: configPath, db: db}, nil
}

// runCmd creates the run command
func runCmd() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the expander with tray and web UI (default)",
		Flags:  []cli.Flag{&cli.BoolFlag{Name: "no-tray", Usage: "Run without the system tray"}},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	slog.Info("Configuration loaded", "path", e.configPath, "database", e.db.Path())

	agent, err := NewAgent(e.cfg, e.configPath, e.db, AgentOptions{Tray: !c.Bool("no-tray")})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := agent.Run(ctx); err != nil {
		return fmt.Errorf("agent error: %w", err)
	}

	slog.Info("Spark stopped")
	return nil
}

// renderCmd creates the render command
func renderCmd() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Print a snippet body with its tokens substituted",
		ArgsUsage: "BODY | --shortcut /name",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "shortcut", Aliases: []string{"s"}, Usage: "Render a stored snippet"},
			&cli.StringFlag{Name: "interactive", Value: "defaults", Usage: "Interactive token mode: passthrough|defaults"},
		},
		Action: func(c *cli.Context) error {
			interactive, ok := render.ParseInteractive(c.String("interactive"))
			if !ok {
				return fmt.Errorf("unknown interactive mode %q", c.String("interactive"))
			}

			body := c.Args().First()
			if shortcut := c.String("shortcut"); shortcut != "" {
				e, err := loadEnv(c)
				if err != nil {
					return err
				}
				defer e.Close()

				s, err := e.db.FindByShortcut(snippet.NormalizeShortcut(shortcut))
				if err != nil {
					return err
				}
				body = s.Body
			}
			if body == "" {
				return errors.New("nothing to render: pass BODY or --shortcut")
			}

			r := render.New(
				render.WithClipboard(platform.NewClipboard()),
				render.WithInteractive(interactive),
			)
			_, err := fmt.Fprintln(c.App.Writer, r.RenderResult(c.Context, body).Text)
			return err
		},
	}
}

// snippetCmd creates the snippet command group
func snippetCmd() *cli.Command {
	return &cli.Command{
		Name:  "snippet",
		Usage: "Manage snippets",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List snippets as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Only snippets in this folder"},
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Only snippets whose name or shortcut contains this text"},
				},
				Action: func(c *cli.Context) error {
					e, err := loadEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()

					filter := storage.SnippetFilter{Search: c.String("search")}
					if name := c.String("folder"); name != "" {
						f, err := e.db.FindFolder(name)
						if err != nil {
							return err
						}
						filter.FolderID = &f.ID
					}

					snippets, err := e.db.ListSnippets(filter)
					if err != nil {
						return err
					}
					if snippets == nil {
						snippets = []snippet.Snippet{}
					}
					return outputJSON(c.App.Writer, snippets)
				},
			},
			{
				Name:      "add",
				Usage:     "Add a snippet",
				ArgsUsage: "SHORTCUT BODY",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name (defaults to the shortcut)"},
					&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder, created if missing"},
					&cli.BoolFlag{Name: "disabled", Usage: "Add the snippet inactive"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return errors.New("usage: spark snippet add SHORTCUT BODY")
					}

					e, err := loadEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()

					item := snippetio.Item{
						Snippet: snippet.Snippet{
							Name:     c.String("name"),
							Shortcut: c.Args().Get(0),
							Body:     c.Args().Get(1),
							IsActive: !c.Bool("disabled"),
						},
						Folder: c.String("folder"),
					}
					sum, err := snippetio.Apply(e.db, []snippetio.Item{item}, false)
					if err != nil {
						return err
					}
					if sum.Created == 0 {
						return fmt.Errorf("shortcut %s: %w", snippet.NormalizeShortcut(item.Snippet.Shortcut), storage.ErrShortcutExists)
					}

					s, err := e.db.FindByShortcut(snippet.NormalizeShortcut(item.Snippet.Shortcut))
					if err != nil {
						return err
					}
					return outputJSON(c.App.Writer, s)
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a snippet",
				ArgsUsage: "SHORTCUT",
				Action: withSnippet(func(c *cli.Context, e *env, s *snippet.Snippet) error {
					if err := e.db.DeleteSnippet(s.ID); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Deleted %s\n", s.Shortcut)
					return nil
				}),
			},
			{
				Name:      "enable",
				Usage:     "Enable a snippet",
				ArgsUsage: "SHORTCUT",
				Action: withSnippet(func(c *cli.Context, e *env, s *snippet.Snippet) error {
					return e.db.SetSnippetActive(s.ID, true)
				}),
			},
			{
				Name:      "disable",
				Usage:     "Disable a snippet without deleting it",
				ArgsUsage: "SHORTCUT",
				Action: withSnippet(func(c *cli.Context, e *env, s *snippet.Snippet) error {
					return e.db.SetSnippetActive(s.ID, false)
				}),
			},
		},
	}
}

// withSnippet resolves the SHORTCUT argument before calling fn
func withSnippet(fn func(c *cli.Context, e *env, s *snippet.Snippet) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("expected one SHORTCUT argument")
		}

		e, err := loadEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.db.FindByShortcut(snippet.NormalizeShortcut(c.Args().First()))
		if err != nil {
			return err
		}
		return fn(c, e, s)
	}
}

// importCmd creates the import command
func importCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import snippets from a YAML pack or a TextBlaze export",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "textblaze", Usage: "FILE is a TextBlaze JSON export"},
			&cli.BoolFlag{Name: "overwrite", Usage: "Replace snippets whose shortcut already exists"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected one FILE argument")
			}

			data, err := os.ReadFile(c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			var items []snippetio.Item
			if c.Bool("textblaze") {
				items, err = snippetio.ImportTextBlaze(data)
			} else {
				items, err = snippetio.ImportYAML(bytes.NewReader(data))
			}
			if err != nil {
				return err
			}

			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			defer e.Close()

			sum, err := snippetio.Apply(e.db, items, c.Bool("overwrite"))
			if err != nil {
				return err
			}
			return outputJSON(c.App.Writer, sum)
		},
	}
}

// exportCmd creates the export command
func exportCmd() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export all snippets as a YAML pack (- for stdout)",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected one FILE argument")
			}

			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			defer e.Close()

			snippets, err := e.db.ListSnippets(storage.SnippetFilter{})
			if err != nil {
				return err
			}
			folders, err := e.db.ListFolders()
			if err != nil {
				return err
			}
			items := snippetio.Collect(snippets, folders)

			if path := c.Args().First(); path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				if err := snippetio.ExportYAML(f, items); err != nil {
					return err
				}
				slog.Info("Exported snippets", "count", len(items), "path", path)
				return f.Close()
			}
			return snippetio.ExportYAML(c.App.Writer, items)
		},
	}
}

// statsCmd creates the stats command
func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show expansion statistics as JSON",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Value: 7, Usage: "Number of days to include"},
			&cli.IntFlag{Name: "top", Value: 10, Usage: "Number of shortcuts to rank"},
		},
		Action: func(c *cli.Context) error {
			days := c.Int("days")
			if days < 1 {
				return errors.New("--days must be at least 1")
			}

			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			defer e.Close()

			overall, err := e.db.GetOverallStats(days)
			if err != nil {
				return err
			}
			top, err := e.db.GetTopShortcuts(days, c.Int("top"))
			if err != nil {
				return err
			}
			if top == nil {
				top = []storage.ShortcutStats{}
			}

			return outputJSON(c.App.Writer, map[string]any{
				"days":      days,
				"overall":   overall,
				"shortcuts": top,
			})
		},
	}
}

// outputJSON writes v as indented JSON
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
