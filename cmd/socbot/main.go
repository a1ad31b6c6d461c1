package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/socbot/internal/ai"
	"github.com/stellarlinkco/socbot/internal/config"
	"github.com/stellarlinkco/socbot/internal/cron"
	"github.com/stellarlinkco/socbot/internal/gateway"
	"github.com/stellarlinkco/socbot/internal/queries"
	"github.com/stellarlinkco/socbot/internal/router"
	"github.com/stellarlinkco/socbot/internal/splunk"
)

var rootCmd = &cobra.Command{
	Use:   "socbot",
	Short: "socbot - Splunk SOC assistant bridge (Telegram + OpenAI)",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the bot gateway (channels + scheduled digests)",
	RunE:  runGateway,
}

var queryCmd = &cobra.Command{
	Use:   "query [command]",
	Short: "Run one bot command from the terminal, e.g. socbot query \"/failed_logins 30m\"",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show socbot configuration status",
	RunE:  runStatus,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Manage scheduled digests run by the gateway",
}

var digestAddCmd = &cobra.Command{
	Use:   "add <name> <command...>",
	Short: "Add a digest, e.g. socbot digest add morning /failed_logins 24h --cron \"0 0 8 * * *\" --chat 555",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDigestAdd,
}

var digestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured digests",
	RunE:  runDigestList,
}

var digestRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a digest by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runDigestRm,
}

func init() {
	digestAddCmd.Flags().String("cron", "", "cron expression with seconds field, e.g. \"0 0 8 * * *\"")
	digestAddCmd.Flags().Duration("every", 0, "fixed interval, e.g. 1h")
	digestAddCmd.Flags().String("chat", "", "chat id the digest reply is delivered to")
	digestAddCmd.Flags().String("channel", "telegram", "channel the digest reply is delivered on")
	digestCmd.AddCommand(digestAddCmd, digestListCmd, digestRmCmd)
	rootCmd.AddCommand(gatewayCmd, queryCmd, onboardCmd, statusCmd, digestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key not set. Set OPENAI_API_KEY or place openaikey.json in %s", config.KeysDir())
	}
	if !cfg.Channels.Telegram.Enabled && !cfg.Channels.WebUI.Enabled {
		return fmt.Errorf("no channels enabled. Edit %s", config.ConfigPath())
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

// runQuery drives one turn of the same pipeline the chat uses, printing
// interim status lines to stderr and the reply to stdout.
func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key not set. Set OPENAI_API_KEY or place openaikey.json in %s", config.KeysDir())
	}

	summarizer, err := ai.NewClient(cfg.OpenAI)
	if err != nil {
		return fmt.Errorf("create openai client: %w", err)
	}

	custom, err := queries.Load(filepath.Join(config.ConfigDir(), "queries.yaml"))
	if err != nil {
		return fmt.Errorf("load custom queries: %w", err)
	}

	r := router.New(splunk.NewClient(cfg.Splunk), summarizer, custom, cfg.Splunk.SummaryRows)

	notify := func(text string) {
		fmt.Fprintln(cmd.ErrOrStderr(), text)
	}

	reply, err := r.Route(cmd.Context(), strings.Join(args, " "), notify)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Put credentials in %s (telegramkey.json, openaikey.json, subscribers.json)\n", config.KeysDir())
	fmt.Printf("     or set OPENAI_API_KEY / SOCBOT_TELEGRAM_TOKEN and subscribers in %s\n", cfgPath)
	fmt.Println("  2. Point SPLUNK_BASE_URL at your Splunk management port (default https://localhost:8089)")
	fmt.Println("  3. Enable the telegram channel in the config and run 'socbot gateway'")
	fmt.Println("  4. Try 'socbot query \"/errors 15m\"' to test without Telegram")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Splunk: %s (verify TLS: %v)\n", cfg.Splunk.BaseURL, cfg.Splunk.VerifyTLS)
	fmt.Printf("Model: %s\n", cfg.OpenAI.Model)
	fmt.Printf("OpenAI key: %s\n", maskSecret(cfg.OpenAI.APIKey))
	fmt.Printf("Telegram: enabled=%v token=%s\n", cfg.Channels.Telegram.Enabled, maskSecret(cfg.Channels.Telegram.Token))
	fmt.Printf("WebUI: enabled=%v\n", cfg.Channels.WebUI.Enabled)
	fmt.Printf("Subscribers: %d\n", len(cfg.Subscribers))

	custom, err := queries.Load(filepath.Join(config.ConfigDir(), "queries.yaml"))
	if err != nil {
		fmt.Printf("Custom queries: error (%v)\n", err)
	} else if custom.Len() > 0 {
		fmt.Printf("Custom queries: %s\n", strings.Join(custom.Names(), ", "))
	} else {
		fmt.Println("Custom queries: none")
	}
	return nil
}

func runDigestAdd(cmd *cobra.Command, args []string) error {
	cronExpr, _ := cmd.Flags().GetString("cron")
	every, _ := cmd.Flags().GetDuration("every")
	chatID, _ := cmd.Flags().GetString("chat")
	channelName, _ := cmd.Flags().GetString("channel")
	return addDigest(cmd.OutOrStdout(), args[0], strings.Join(args[1:], " "), cronExpr, every, chatID, channelName)
}

func runDigestList(cmd *cobra.Command, args []string) error {
	return listDigests(cmd.OutOrStdout())
}

func runDigestRm(cmd *cobra.Command, args []string) error {
	return removeDigest(cmd.OutOrStdout(), args[0])
}

func digestService() *cron.Service {
	return cron.NewService(filepath.Join(config.ConfigDir(), "data", "digests.json"))
}

func addDigest(out io.Writer, name, command, cronExpr string, every time.Duration, chatID, channelName string) error {
	var schedule cron.Schedule
	switch {
	case cronExpr != "" && every > 0:
		return fmt.Errorf("use either --cron or --every, not both")
	case cronExpr != "":
		schedule = cron.Schedule{Kind: "cron", Expr: cronExpr}
	case every > 0:
		schedule = cron.Schedule{Kind: "every", EveryMs: every.Milliseconds()}
	default:
		return fmt.Errorf("a schedule is required: --cron \"0 0 8 * * *\" or --every 1h")
	}

	// Reject command lines the router would refuse at run time.
	if _, err := router.Parse(command); err != nil {
		return err
	}

	svc := digestService()
	if err := svc.Load(); err != nil {
		return fmt.Errorf("load digest store: %w", err)
	}
	job, err := svc.AddJob(name, schedule, cron.Payload{
		Command: command,
		Channel: channelName,
		ChatID:  chatID,
		Deliver: chatID != "",
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Added digest %s (%s): %s\n", job.ID, job.Name, job.Payload.Command)
	return nil
}

func listDigests(out io.Writer) error {
	svc := digestService()
	if err := svc.Load(); err != nil {
		return fmt.Errorf("load digest store: %w", err)
	}

	jobs := svc.ListJobs()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No digests configured.")
		return nil
	}
	for _, job := range jobs {
		sched := job.Schedule.Expr
		if job.Schedule.Kind == "every" {
			sched = "every " + (time.Duration(job.Schedule.EveryMs) * time.Millisecond).String()
		}
		status := job.State.LastStatus
		if status == "" {
			status = "never run"
		}
		fmt.Fprintf(out, "%s  %-12s  %-20s  %-28s  %s\n", job.ID, job.Name, sched, job.Payload.Command, status)
	}
	return nil
}

func removeDigest(out io.Writer, id string) error {
	svc := digestService()
	if err := svc.Load(); err != nil {
		return fmt.Errorf("load digest store: %w", err)
	}
	if !svc.RemoveJob(id) {
		return fmt.Errorf("no digest with id %q (see socbot digest list)", id)
	}
	fmt.Fprintf(out, "Removed digest %s\n", id)
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "not set"
	}
	if len(s) <= 8 {
		return "set"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
