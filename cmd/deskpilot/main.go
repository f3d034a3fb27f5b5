package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deskpilot-io/deskpilot/internal/assignment"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "deskpilot",
	Short: "DeskPilot - inbound email ticketing pipeline",
	Long: `DeskPilot ingests support mailboxes into tickets.

It polls an IMAP mailbox, filters and classifies inbound mail, creates or
updates tickets, auto-assigns new tickets to agents, and keeps the remote
mailbox state in sync with processing results.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass and print the result counts",
	RunE:  runIngest,
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run ingestion on the configured schedule until interrupted",
	RunE:  runPoll,
}

var validateRulesCmd = &cobra.Command{
	Use:   "validate-rules [file]",
	Short: "Validate an assignment rule file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := assignment.LoadRuleFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to the configuration file")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(validateRulesCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	app, err := buildApp(configFlag)
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.Service.RunOnce(cmd.Context())
	out, _ := json.Marshal(summary)
	fmt.Println(string(out))
	return err
}

func runPoll(cmd *cobra.Command, args []string) error {
	app, err := buildApp(configFlag)
	if err != nil {
		return err
	}
	defer app.Close()

	sched := app.Scheduler()
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	app.Logger.Printf("deskpilot: shutting down")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.SetFlags(0)
		log.Fatalf("deskpilot: %v", err)
	}
}
