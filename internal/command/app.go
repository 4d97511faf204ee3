package command

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/aashrith/task-away-assistant/internal/config"
)

// ChatOptions carries the chat subcommand flags.
type ChatOptions struct {
	UserID string
	DryRun bool
}

type Deps struct {
	LoadConfig func() (config.Config, error)
	RunServe   func(context.Context, config.Config) error
	RunChat    func(context.Context, config.Config, ChatOptions) error
	RunTasks   func(context.Context, config.Config, string) error
	RunMigrate func(context.Context, config.Config) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "taskaway",
		Usage: "conversational task list assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a TOML settings file",
				EnvVars: []string{"APP_CONFIG_FILE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx, deps)
			if err != nil {
				return err
			}
			return runServe(ctx.Context, deps, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP and websocket API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, overrides APP_BIND_ADDR"},
				},
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					if addr := strings.TrimSpace(ctx.String("addr")); addr != "" {
						cfg.BindAddr = addr
					}
					return runServe(ctx.Context, deps, cfg)
				},
			},
			{
				Name:  "chat",
				Usage: "talk to the assistant from the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Value: "cli", Usage: "user id for the chat session"},
					&cli.BoolFlag{Name: "dry-run", Usage: "show the resolved command without running it"},
				},
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					if deps.RunChat == nil {
						return errors.New("chat runner is not configured")
					}
					return deps.RunChat(ctx.Context, cfg, ChatOptions{
						UserID: strings.TrimSpace(ctx.String("user")),
						DryRun: ctx.Bool("dry-run"),
					})
				},
			},
			{
				Name:  "tasks",
				Usage: "print the stored tasks",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "only show tasks with this status"},
				},
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					if deps.RunTasks == nil {
						return errors.New("tasks runner is not configured")
					}
					return deps.RunTasks(ctx.Context, cfg, strings.ToLower(strings.TrimSpace(ctx.String("status"))))
				},
			},
			{
				Name:  "migrate",
				Usage: "create the task and audit schemas, then exit",
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					if deps.RunMigrate == nil {
						return errors.New("migrate runner is not configured")
					}
					return deps.RunMigrate(ctx.Context, cfg)
				},
			},
		},
	}
}

func loadConfig(ctx *cli.Context, deps Deps) (config.Config, error) {
	if path := strings.TrimSpace(ctx.String("config")); path != "" {
		if err := os.Setenv("APP_CONFIG_FILE", path); err != nil {
			return config.Config{}, err
		}
	}
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.Load()
}

func runServe(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx, cfg)
}
