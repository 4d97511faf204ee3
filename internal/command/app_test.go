package command

import (
	"context"
	"os"
	"testing"

	"github.com/aashrith/task-away-assistant/internal/config"
)

func fixedConfig() (config.Config, error) {
	return config.Config{BindAddr: ":8080"}, nil
}

func TestBuildApp_DefaultCommandIsServe(t *testing.T) {
	served := 0
	app := BuildApp(Deps{
		LoadConfig: fixedConfig,
		RunServe: func(_ context.Context, cfg config.Config) error {
			served++
			if cfg.BindAddr != ":8080" {
				t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
			}
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskaway"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if served != 1 {
		t.Fatalf("serve called %d times, want 1", served)
	}
}

func TestBuildApp_ServeAddrOverride(t *testing.T) {
	var got string
	app := BuildApp(Deps{
		LoadConfig: fixedConfig,
		RunServe: func(_ context.Context, cfg config.Config) error {
			got = cfg.BindAddr
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskaway", "serve", "--addr", "127.0.0.1:9000"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got != "127.0.0.1:9000" {
		t.Fatalf("BindAddr = %q, want %q", got, "127.0.0.1:9000")
	}
}

func TestBuildApp_ChatFlags(t *testing.T) {
	var got ChatOptions
	app := BuildApp(Deps{
		LoadConfig: fixedConfig,
		RunChat: func(_ context.Context, _ config.Config, opts ChatOptions) error {
			got = opts
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskaway", "chat", "--user", "jane", "--dry-run"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got != (ChatOptions{UserID: "jane", DryRun: true}) {
		t.Fatalf("ChatOptions = %+v", got)
	}
}

func TestBuildApp_TasksStatusIsLowercased(t *testing.T) {
	var got string
	app := BuildApp(Deps{
		LoadConfig: fixedConfig,
		RunTasks: func(_ context.Context, _ config.Config, status string) error {
			got = status
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskaway", "tasks", "--status", " Completed "}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got != "completed" {
		t.Fatalf("status = %q, want %q", got, "completed")
	}
}

func TestBuildApp_MigrateCommand(t *testing.T) {
	migrated := 0
	app := BuildApp(Deps{
		LoadConfig: fixedConfig,
		RunMigrate: func(context.Context, config.Config) error {
			migrated++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskaway", "migrate"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if migrated != 1 {
		t.Fatalf("migrate called %d times, want 1", migrated)
	}
}

func TestBuildApp_ConfigFlagSetsEnv(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", "")
	app := BuildApp(Deps{
		LoadConfig: fixedConfig,
		RunMigrate: func(context.Context, config.Config) error { return nil },
	})
	if err := app.RunContext(context.Background(), []string{"taskaway", "--config", "settings.toml", "migrate"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := os.Getenv("APP_CONFIG_FILE"); got != "settings.toml" {
		t.Fatalf("APP_CONFIG_FILE = %q, want %q", got, "settings.toml")
	}
}

func TestBuildApp_MissingRunner(t *testing.T) {
	app := BuildApp(Deps{LoadConfig: fixedConfig})
	if err := app.RunContext(context.Background(), []string{"taskaway", "tasks"}); err == nil {
		t.Fatal("expected error when tasks runner is missing")
	}
}
