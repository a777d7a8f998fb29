package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"promptbed/internal/app"
	"promptbed/internal/config"
	"promptbed/internal/db"
	"promptbed/internal/nova"
	"promptbed/internal/prompt"
	"promptbed/internal/report"
	"promptbed/internal/tenant"
)

var rootCmd = &cobra.Command{
	Use:   "pb",
	Short: "Promptbed CLI",
	Long: `Promptbed manages prompt templates and testbed agents.
- Prompts: validated, named prompt templates (lowercase with underscores, no wildcards).
- Tenant prompts: per-organization prompt templates, versioned on every update.
- Agents: run a prompt and persist state (idle -> running -> completed/failed).
- Storage: org-scoped records with fallback to legacy records written before multi-tenancy.
- Reports: aggregate finding scores into a severity bucket (low/medium/high).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("memory") {
			return nil
		}
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
	viper.SetEnvPrefix("PROMPTBED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("memory", false, "use the in-memory backend instead of sqlite")
	rootCmd.PersistentFlags().String("org-id", "", "organization id (empty selects the legacy scope)")
	rootCmd.PersistentFlags().String("org-name", "", "organization name")
	rootCmd.PersistentFlags().String("agent-id", "", "agent id (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("memory", rootCmd.PersistentFlags().Lookup("memory"))
	_ = viper.BindPFlag("org-id", rootCmd.PersistentFlags().Lookup("org-id"))
	_ = viper.BindPFlag("org-name", rootCmd.PersistentFlags().Lookup("org-name"))
	_ = viper.BindPFlag("agent-id", rootCmd.PersistentFlags().Lookup("agent-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(promptCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(novaCmd())
	rootCmd.AddCommand(logCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default promptbed.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printJSONOrTable(a.Config)
			})
		},
	})
	return cfg
}

func promptCmd() *cobra.Command {
	p := &cobra.Command{Use: "prompt", Short: "Validate and inspect named prompts"}
	p.AddCommand(promptValidateCmd())
	p.AddCommand(promptListCmd())
	p.AddCommand(promptShowCmd())
	p.AddCommand(promptRegisterCmd())
	p.AddCommand(promptRemoveCmd())
	p.AddCommand(promptSeedCmd())
	return p
}

func promptValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <name>",
		Short: "Check a prompt name against the naming convention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prompt.ValidateName(args[0]); err != nil {
				return err
			}
			fmt.Println("valid")
			return nil
		},
	}
}

func promptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				listing := a.Prompts.List()
				if viper.GetBool("json") {
					return printJSON(listing)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Description"})
				for name, desc := range listing {
					tw.AppendRow(table.Row{name, desc})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func promptShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a registered prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, ok := a.Prompts.Get(args[0])
				if !ok {
					return fmt.Errorf("prompt %s not registered", args[0])
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func promptRegisterCmd() *cobra.Command {
	var name, content, version, description string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Validate and register a prompt for this invocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := prompt.New(name, content, version, description)
				if err != nil {
					return err
				}
				a.Prompts.Register(p)
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "prompt name")
	cmd.Flags().StringVar(&content, "content", "", "prompt content")
	cmd.Flags().StringVar(&version, "version", "", "prompt version (default 1.0)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func promptRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a registered prompt for this invocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if !a.Prompts.Remove(args[0]) {
					return fmt.Errorf("prompt %s not registered", args[0])
				}
				fmt.Println("removed", args[0])
				return nil
			})
		},
	}
}

func promptSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Register the standard prompt catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := prompt.Seed(a.Prompts); err != nil {
					return err
				}
				fmt.Printf("registered %d prompts\n", len(a.Prompts.List()))
				return nil
			})
		},
	}
}

func tenantCmd() *cobra.Command {
	t := &cobra.Command{Use: "tenant", Short: "Manage tenant prompt templates"}
	t.AddCommand(tenantCreateCmd())
	t.AddCommand(tenantGetCmd())
	t.AddCommand(tenantListCmd())
	t.AddCommand(tenantUpdateCmd())
	t.AddCommand(tenantDeleteCmd())
	t.AddCommand(tenantTestCmd())
	return t
}

func tenantCreateCmd() *cobra.Command {
	var id, title, content string
	var tags []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create (or replace) a tenant prompt at version 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Tenants.Create(ctx, id, a.Config.Org.ID, a.Config.Org.Name, title, content, tags)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "prompt id")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&content, "content", "", "prompt content")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "tags")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func tenantGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a tenant prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Tenants.Get(ctx, args[0], a.Config.Org.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func tenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenant prompts held in memory for the org",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				prompts := a.Tenants.ListForOrg(a.Config.Org.ID)
				if viper.GetBool("json") {
					return printJSON(prompts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Version", "Tags"})
				for _, p := range prompts {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Version, strings.Join(p.Tags, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func tenantUpdateCmd() *cobra.Command {
	var id string
	var title, content, orgName string
	var tags []string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update supplied fields of a tenant prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var upd tenant.Update
				if cmd.Flags().Changed("title") {
					upd.Title = &title
				}
				if cmd.Flags().Changed("content") {
					upd.Content = &content
				}
				if cmd.Flags().Changed("set-org-name") {
					upd.OrgName = &orgName
				}
				if cmd.Flags().Changed("tags") {
					upd.Tags = tags
				}
				p, err := a.Tenants.UpdatePrompt(ctx, id, a.Config.Org.ID, upd)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "prompt id")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().StringVar(&orgName, "set-org-name", "", "new org name")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "new tags")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func tenantDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tenant prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Tenants.Delete(ctx, args[0], a.Config.Org.ID); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func tenantTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <id>",
		Short: "Run a tenant prompt through the workspace agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ag := a.Agent()
				if _, err := ag.LoadState(ctx); err != nil {
					return err
				}
				result, err := a.Tenants.Test(ctx, args[0], a.Config.Org.ID, ag)
				if err != nil {
					return err
				}
				fmt.Println(result)
				return nil
			})
		},
	}
}

func agentCmd() *cobra.Command {
	a := &cobra.Command{Use: "agent", Short: "Configure and run the workspace agent"}
	a.AddCommand(agentConfigureCmd())
	a.AddCommand(agentRunCmd())
	a.AddCommand(agentStateCmd())
	return a
}

func agentConfigureCmd() *cobra.Command {
	var configJSON string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Replace the agent config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var cfg map[string]any
				if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
					return fmt.Errorf("config-json: %w", err)
				}
				ag := a.Agent()
				if _, err := ag.LoadState(ctx); err != nil {
					return err
				}
				if err := ag.Configure(ctx, cfg); err != nil {
					return err
				}
				return printJSONOrTable(ag.State())
			})
		},
	}
	cmd.Flags().StringVar(&configJSON, "config-json", "{}", "config as a JSON object")
	return cmd
}

func agentRunCmd() *cobra.Command {
	var promptName string
	cmd := &cobra.Command{
		Use:   "run [prompt text]",
		Short: "Run the agent on prompt text or a registered prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				text := ""
				if len(args) > 0 {
					text = args[0]
				}
				if promptName != "" {
					content, ok := a.Prompts.Content(promptName)
					if !ok {
						return fmt.Errorf("prompt %s not registered", promptName)
					}
					text = content
				}
				if text == "" {
					return fmt.Errorf("prompt text or --prompt required")
				}
				ag := a.Agent()
				if _, err := ag.LoadState(ctx); err != nil {
					return err
				}
				result, err := ag.Run(ctx, text)
				if err != nil {
					return err
				}
				fmt.Println(result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&promptName, "prompt", "", "registered prompt name")
	return cmd
}

func agentStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the persisted agent state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ag := a.Agent()
				found, err := ag.LoadState(ctx)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no persisted state for agent %s", ag.ID)
				}
				return printJSONOrTable(ag.State())
			})
		},
	}
}

func reportCmd() *cobra.Command {
	r := &cobra.Command{Use: "report", Short: "Generate CAM reports"}
	r.AddCommand(reportGenerateCmd())
	return r
}

func reportGenerateCmd() *cobra.Command {
	var itemsFile, author, reportID string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Aggregate finding scores from a JSON items file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(itemsFile)
			if err != nil {
				return err
			}
			var items []report.Item
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("items file: %w", err)
			}
			rep := report.Generate(items, report.Meta{
				ReportID: reportID,
				Author:   author,
				OrgID:    viper.GetString("org-id"),
			})
			if viper.GetBool("json") {
				return printJSON(rep)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Label", "Score", "Notes"})
			for _, it := range rep.Items {
				tw.AppendRow(table.Row{it.ID, it.Label, fmt.Sprintf("%.2f", it.Score), it.Notes})
			}
			tw.AppendFooter(table.Row{"", "aggregate", fmt.Sprintf("%.4f", rep.AggregateScore), rep.Severity})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&itemsFile, "items", "", "JSON file with an array of findings")
	cmd.Flags().StringVar(&author, "author", "", "report author")
	cmd.Flags().StringVar(&reportID, "report-id", "", "report id")
	_ = cmd.MarkFlagRequired("items")
	return cmd
}

func novaCmd() *cobra.Command {
	var extract bool
	cmd := &cobra.Command{
		Use:   "nova <json|->",
		Short: "Parse a Nova JSON response, repairing trailing commas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if input == "-" {
				data, err := readStdin()
				if err != nil {
					return err
				}
				input = data
			}
			parsed, err := nova.Parse(input)
			if err != nil {
				return err
			}
			if extract {
				fmt.Println(nova.ExtractContent(parsed))
				return nil
			}
			return printJSON(parsed)
		},
	}
	cmd.Flags().BoolVar(&extract, "extract", false, "print only the first content text")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the storage audit log"}
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail storage events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.DB == nil {
					return fmt.Errorf("audit log requires the sqlite backend")
				}
				events, err := a.Events.Tail(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	lg.AddCommand(tail)
	return lg
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(app.Options{
		Workspace: viper.GetString("workspace"),
		InMemory:  viper.GetBool("memory"),
		OrgID:     viper.GetString("org-id"),
		OrgName:   viper.GetString("org-name"),
		AgentID:   viper.GetString("agent-id"),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSONOrTable(v any) error {
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

func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
