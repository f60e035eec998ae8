package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/HyxiaoGe/prompthub/internal/config"
	"github.com/HyxiaoGe/prompthub/internal/db"
	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/engine"
	"github.com/HyxiaoGe/prompthub/internal/migrate"
	"github.com/HyxiaoGe/prompthub/internal/server"
)

var (
	configPath string
	jsonOutput bool
	actorID    string
)

var rootCmd = &cobra.Command{
	Use:   "prompthub",
	Short: "PromptHub CLI",
	Long: `PromptHub is a centralized plane for managing, versioning and composing LLM
prompts. Prompts are versioned templates; scenes are pipelines that resolve
several prompts into one final rendered payload, with dependencies tracked
through a reference index and resolves served out of an in-process cache.`,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to prompthub.yml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor-id", "local-user", "actor identifier attributed to writes")
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(promptCmd())
	rootCmd.AddCommand(sceneCmd())
}

// withEngine opens the database, runs migrations, and wires an Engine for
// one-shot CLI commands.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	e := engine.New(conn, cfg, nil)
	return fn(ctx, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.ListenAddr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			conn, err := db.Open(cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, cfg, nil)
			defer e.CallLog.Close()

			authCfg := server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader}
			handler, err := server.New(server.Config{Engine: e, BasePath: cfg.Server.BasePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:         cfg.Server.ListenAddr,
				Handler:      handler,
				ReadTimeout:  time.Duration(cfg.Server.RequestTimeout) * time.Second,
				WriteTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving PromptHub API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at %s/docs)\n",
				cfg.Server.ListenAddr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjects(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "SLUG", "NAME", "CREATED_AT"})
				for _, p := range items {
					t.AppendRow(table.Row{p.ID, p.Slug, p.Name, p.CreatedAt})
				}
				t.Render()
				return nil
			})
		},
	})
	prj.AddCommand(&cobra.Command{
		Use:   "create [slug] [name]",
		Short: "Create a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, args[0], args[1], actorID)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	})
	return prj
}

func promptCmd() *cobra.Command {
	p := &cobra.Command{Use: "prompt", Short: "Manage prompts"}
	p.AddCommand(&cobra.Command{
		Use:   "list [project-id]",
		Short: "List prompts in a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in := engine.ListPromptsInput{}
				in.ProjectID = args[0]
				items, _, err := e.ListPrompts(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(filterByProject(items, args[0]))
			})
		},
	})
	p.AddCommand(&cobra.Command{
		Use:   "render [prompt-id]",
		Short: "Render a prompt's current version with no variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				result, err := e.Render(ctx, args[0], "", nil)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	})
	return p
}

func sceneCmd() *cobra.Command {
	s := &cobra.Command{Use: "scene", Short: "Manage scenes"}
	s.AddCommand(&cobra.Command{
		Use:   "resolve [scene-id]",
		Short: "Resolve a scene with no caller-supplied variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				result, err := e.ResolveScene(ctx, engine.ResolveInput{SceneID: args[0], CallerSystem: "cli", CallerID: actorID})
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	})
	return s
}

func filterByProject(items []domain.Prompt, projectID string) []domain.Prompt {
	out := make([]domain.Prompt, 0, len(items))
	for _, p := range items {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	return out
}
