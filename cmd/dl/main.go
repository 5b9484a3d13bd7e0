package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dailies/internal/config"
	"dailies/internal/db"
	"dailies/internal/engine"
	"dailies/internal/migrate"
	"dailies/internal/server"
	"dailies/internal/turnaround"
)

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "Dailies CLI",
	Long: `Dailies tracks review turnaround for animation assets.
Each asset records a vendor, a version, and when it was last reviewed. The
elapsed working time since that review is classified against two thresholds:
- normal: within the orange threshold
- orange: business days since review exceed the orange threshold
- red:    days since review exceed the red threshold (business days under the
          current rule; calendar days under the legacy rule)
Business days skip weekends and the configured holiday table (dailies.yml).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DAILIES")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(assetCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(holidaysCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func assetCmd() *cobra.Command {
	asset := &cobra.Command{
		Use:   "asset",
		Short: "Manage tracked assets",
	}
	asset.AddCommand(assetAddCmd())
	asset.AddCommand(assetListCmd())
	asset.AddCommand(assetGetCmd())
	asset.AddCommand(assetUpdateCmd())
	asset.AddCommand(assetReviewCmd())
	asset.AddCommand(assetDeleteCmd())
	return asset
}

func assetAddCmd() *cobra.Command {
	var opts engine.AssetCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a new asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAsset(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "asset id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "asset name")
	cmd.Flags().StringVar(&opts.Vendor, "vendor", "", "vendor name")
	cmd.Flags().IntVar(&opts.Version, "version", 1, "delivered version")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&opts.LastReviewedAt, "reviewed-at", "", "last review timestamp (RFC3339, default now)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}

func assetListCmd() *cobra.Command {
	var f engine.ListFilters
	var alert, sortBy string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets with turnaround",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Alert = turnaround.Level(alert)
			if sortBy == "urgency" {
				f.ByUrgency = true
			} else {
				f.SortBy = sortBy
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				views, err := e.ListAssets(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(views)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Vendor", "Ver", "Last Reviewed", "Cal", "Biz", "Alert"})
				for _, v := range views {
					tw.AppendRow(table.Row{shortID(v.ID), v.Name, v.Vendor, v.Version, v.LastReviewedAt, v.CalendarDays, v.BusinessDays, v.AlertLevel})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Vendor, "vendor", "", "vendor filter")
	cmd.Flags().StringVar(&f.Search, "search", "", "name substring filter")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort field (name, vendor, version, last_reviewed, created, urgency)")
	cmd.Flags().BoolVar(&f.Desc, "desc", false, "sort descending")
	cmd.Flags().StringVar(&alert, "alert", "", "alert level filter (normal, orange, red)")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func assetGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get asset with turnaround",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetAssetView(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(v)
			})
		},
	}
	return cmd
}

func assetUpdateCmd() *cobra.Command {
	var name, vendor, notes, reviewedAt string
	var version int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update asset fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.AssetUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("vendor") {
				opts.Vendor = &vendor
			}
			if cmd.Flags().Changed("version") {
				opts.Version = &version
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			if cmd.Flags().Changed("reviewed-at") {
				opts.LastReviewedAt = &reviewedAt
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateAsset(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "asset name")
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor name")
	cmd.Flags().IntVar(&version, "version", 0, "delivered version")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&reviewedAt, "reviewed-at", "", "last review timestamp (RFC3339)")
	return cmd
}

func assetReviewCmd() *cobra.Command {
	var ts string
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Mark asset reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.MarkReviewed(ctx, args[0], ts, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	cmd.Flags().StringVar(&ts, "at", "", "review timestamp (RFC3339, default now)")
	return cmd
}

func assetDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Stop tracking an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAsset(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func importCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import assets from CSV (name,vendor,version,last_reviewed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filePath)
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ImportCSV(ctx, f, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("created %d, updated %d, skipped %d\n", res.Created, res.Updated, res.Skipped)
				for _, msg := range res.Errors {
					fmt.Println("  skip:", msg)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to CSV file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func settingsCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit alert settings",
	}
	s.AddCommand(settingsShowCmd())
	s.AddCommand(settingsSetCmd())
	s.AddCommand(settingsTemplateCmd())
	return s
}

func settingsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Settings(ctx)
				if err != nil {
					return err
				}
				return printJSONOrIndent(s)
			})
		},
	}
	return cmd
}

func settingsSetCmd() *cobra.Command {
	var orange, red int
	var rule string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.SettingsUpdateOptions{ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("orange") {
				opts.OrangeThreshold = &orange
			}
			if cmd.Flags().Changed("red") {
				opts.RedThreshold = &red
			}
			if cmd.Flags().Changed("rule") {
				opts.Rule = &rule
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateSettings(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(s)
			})
		},
	}
	cmd.Flags().IntVar(&orange, "orange", 0, "orange threshold in business days [1,30]")
	cmd.Flags().IntVar(&red, "red", 0, "red threshold in days [1,60]")
	cmd.Flags().StringVar(&rule, "rule", "", "classification rule (business, legacy)")
	return cmd
}

func settingsTemplateCmd() *cobra.Command {
	var studioID string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print a default dailies.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault(studioID))
			return nil
		},
	}
	cmd.Flags().StringVar(&studioID, "studio-id", "dailies", "studio identifier")
	return cmd
}

func holidaysCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "List configured holidays",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = time.Now().Year()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				dates := e.Calendar.HolidaysForYear(year)
				if viper.GetBool("json") {
					out := make([]string, 0, len(dates))
					for _, d := range dates {
						out = append(out, d.String())
					}
					return printJSON(out)
				}
				if len(dates) == 0 {
					fmt.Printf("no holidays configured for %d\n", year)
					return nil
				}
				for _, d := range dates {
					fmt.Println(d)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Asset counts per alert level",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.Status(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				fmt.Printf("Assets: %d\n", counts["total"])
				for _, level := range []string{"red", "orange", "normal"} {
					fmt.Printf("  %s: %d\n", level, counts[level])
				}
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("DAILIES_JWT_SECRET")}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Dailies API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default("dailies")
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrIndent(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
