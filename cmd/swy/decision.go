package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDecisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision",
		Short: "Decision provenance commands",
	}

	cmd.AddCommand(newDecisionRecordCmd())
	cmd.AddCommand(newDecisionListCmd())
	cmd.AddCommand(newDecisionVerifyCmd())
	return cmd
}

func newDecisionRecordCmd() *cobra.Command {
	var (
		configPath string
		agent      string
		action     string
		payload    string
		signature  string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a decision on the provenance ledger",
		Long:  "Appends a decision to the hash-chained ledger on behalf of a registered agent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecisionRecord(cmd, configPath, agent, action, payload, signature)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&agent, "agent", "", "recording agent (required)")
	cmd.Flags().StringVar(&action, "action", "", "action name (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "decision payload")
	cmd.Flags().StringVar(&signature, "signature", "", "opaque signature to store")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("action")
	return cmd
}

func runDecisionRecord(cmd *cobra.Command, configPath, agent, action, payload, signature string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ledger, err := buildLedger(gormDB)
	if err != nil {
		return err
	}

	decision, err := ledger.Record(agent, action, payload, signature)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recorded decision %d\n", decision.Seq)
	fmt.Fprintf(out, "Hash: %s\n", decision.Hash)
	return nil
}

func newDecisionListCmd() *cobra.Command {
	var (
		configPath string
		agent      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded decisions",
		Long:  "Lists decisions in chain order, optionally filtered by agent. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecisionList(cmd, configPath, agent)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&agent, "agent", "", "filter by recording agent")
	return cmd
}

func runDecisionList(cmd *cobra.Command, configPath, agent string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ledger, err := buildLedger(gormDB)
	if err != nil {
		return err
	}

	decisions, err := ledger.List(agent)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(decisions) == 0 {
		fmt.Fprintln(out, "No decisions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tAGENT\tACTION\tHASH\tRECORDED")
	for _, d := range decisions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			d.Seq, d.Agent, truncate(d.Action, 30), d.Hash[:12],
			d.RecordedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	return nil
}

func newDecisionVerifyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the decision hash chain",
		Long:  "Recomputes every hash in the ledger and checks each link against its predecessor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecisionVerify(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runDecisionVerify(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ledger, err := buildLedger(gormDB)
	if err != nil {
		return err
	}

	if err := ledger.VerifyChain(); err != nil {
		return err
	}

	head, err := ledger.Head()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if head.Hash == "" {
		fmt.Fprintln(out, "Ledger is empty.")
		return nil
	}
	fmt.Fprintf(out, "Chain intact through seq %d\n", head.Seq)
	fmt.Fprintf(out, "Head hash: %s\n", head.Hash)
	return nil
}
