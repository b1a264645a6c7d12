package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/catalog"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
	pkgconfig "github.com/Leonado-NIKITA/DAGflowtoCode/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func validate(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("validate: flow file is required")
	}
	failed := 0
	for _, path := range cmd.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		ok, err := flowservice.ValidateDocument(data)
		switch {
		case err != nil:
			fmt.Fprintf(cmd.Root().Writer, "%s: %v\n", path, err)
			failed++
		case !ok:
			fmt.Fprintf(cmd.Root().Writer, "%s: dangling connection\n", path)
			failed++
		default:
			fmt.Fprintf(cmd.Root().Writer, "%s: ok\n", path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("validate: %d of %d flows invalid", failed, cmd.Args().Len())
	}
	return nil
}

func templates(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	lib, err := catalog.Open(cfg.Library.Path, logger)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(lib.All())
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tCATEGORY\tIN\tOUT\tCOLOR")
	for _, t := range lib.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			t.TypeID, t.DisplayName, t.Category, t.InputPortCount, t.OutputPortCount, t.Color)
	}
	return tw.Flush()
}

func main() {
	cmd := &cli.Command{
		Name:    "dagflow",
		Usage:   "Node-graph flow editor backend with a file workspace, SQLite index and MCP tools",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "validate",
				Usage:     "Check that flow files load and every connection joins two nodes",
				ArgsUsage: "<file.flow.json>...",
				Action:    validate,
			},
			{
				Name:  "templates",
				Usage: "Print the node template catalog",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
				},
				Action: templates,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
