// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable debug logging",
	}
}

// syncFlags are shared by the root command and 'sync', so a bare invocation runs a sync.
//
// The root copy is local so that subcommands can define flags of the same name.
func syncFlags(local bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Local:   local,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown or csv",
			Value:   "text",
			Local:   local,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
			Local: local,
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "Resolve and diff without appending",
			Local:   local,
		},
		&cli.StringSliceFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "Only sync sources whose URL contains this value or whose playlist ID equals it (repeatable)",
			Local:   local,
		},
	}
}

// syncCommand runs one pass over the configured sources
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Append newly played tracks to each station's playlist",
		Flags:  syncFlags(false),
		Action: r.Sync,
	}
}

// extractCommand runs a single extractor against a feed
func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Fetch a station feed and print the extracted track names",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringFlag{
				Name:     "url",
				Aliases:  []string{"u"},
				Usage:    "Feed URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "extractor",
				Aliases:  []string{"e"},
				Usage:    "Extractor name",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "html",
				Usage: "Feed is an HTML page rather than JSON",
			},
		},
		Action: r.Extract,
	}
}

// authCommand handles the one-time Spotify authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Obtain a Spotify refresh token",
		Commands: []*cli.Command{
			{
				Name:   "url",
				Usage:  "Print the Spotify authorization URL",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthURL,
			},
			{
				Name:  "login",
				Usage: "Run the authorization flow through a local callback server",
				Flags: []cli.Flag{
					configFlag(),
					verboseFlag(),
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the login URL instead of opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: authTimeout,
					},
				},
				Action: r.AuthLogin,
			},
		},
	}
}

// cacheCommand inspects and maintains the cache store
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the track and playlist cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache entry counts",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheStats,
			},
			{
				Name:   "compact",
				Usage:  "Delete superseded track rows, keeping the newest per name",
				Flags:  []cli.Flag{configFlag(), verboseFlag()},
				Action: r.CacheCompact,
			},
			{
				Name:  "invalidate",
				Usage: "Drop every cached page of a playlist",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Playlist ID",
						Required: true,
					},
				},
				Action: r.CacheInvalidate,
			},
		},
	}
}

// historyCommand lists recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent sync runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text or csv",
				Value:   "text",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Number of runs to show",
				Value:   20,
			},
		},
		Action: r.History,
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the cache and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a starter config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}
