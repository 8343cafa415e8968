package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/MrSnakeDoc/openbinder/internal/version"
)

func main() {
	env := &env{}

	app := &cli.App{
		Name:    "obctl",
		Usage:   "OpenBinder administration",
		Version: version.String(),
		Description: `Maintenance commands that talk to the OpenBinder Redis store directly.

Examples:
  obctl export --uid 1234 --out backup.json
  obctl import --uid 1234 --yes backup.json
  obctl sessions revoke <token>
  obctl cache list
  obctl cache prune --keep v0.1.2`,
		Before: env.open,
		After:  env.close,
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Write a user's bookmarks to a backup file",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					uidFlag,
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default: dated backup name)"},
				},
				Action: env.export,
			},
			{
				Name:      "import",
				Usage:     "Replace a user's bookmarks with a backup file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					uidFlag,
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm that existing data is replaced"},
				},
				Action: env.importBackup,
			},
			{
				Name:  "sessions",
				Usage: "Manage sign-in sessions",
				Subcommands: []*cli.Command{
					{
						Name:      "revoke",
						Usage:     "End a session and notify connected clients",
						ArgsUsage: "<token>",
						Action:    env.revokeSession,
					},
				},
			},
			{
				Name:  "cache",
				Usage: "Inspect offline asset caches",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List cache names and entry counts",
						Action: env.listCaches,
					},
					{
						Name:  "prune",
						Usage: "Delete OpenBinder caches",
						Flags: []cli.Flag{
							&cli.StringSliceFlag{Name: "keep", Usage: "version whose cache is kept (repeatable)"},
						},
						Action: env.pruneCaches,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "obctl: %v\n", err)
		os.Exit(1)
	}
}
