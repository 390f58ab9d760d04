package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/parlane/switchyard/internal/models"
	"github.com/spf13/cobra"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Message routing commands",
	}

	cmd.AddCommand(newMessageSendCmd())
	cmd.AddCommand(newMessageListCmd())
	cmd.AddCommand(newMessageShowCmd())
	cmd.AddCommand(newMessageDeliverCmd())
	cmd.AddCommand(newMessageDelayCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		configPath  string
		from        string
		to          string
		content     string
		messageType string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message between agents",
		Long:  "Routes a message from one registered agent to another, subject to rate limits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageSend(cmd, configPath, from, to, content, messageType)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&from, "from", "", "sending agent (required)")
	cmd.Flags().StringVar(&to, "to", "", "receiving agent (required)")
	cmd.Flags().StringVar(&content, "content", "", "message body (required)")
	cmd.Flags().StringVar(&messageType, "type", "notice", "message type")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("content")
	return cmd
}

func runMessageSend(cmd *cobra.Command, configPath, from, to, content, messageType string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rtr, err := buildRouter(cfg, gormDB)
	if err != nil {
		return err
	}

	messageID, err := rtr.Send(from, to, content, messageType)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent message %s\n", messageID)
	return nil
}

func newMessageListCmd() *cobra.Command {
	var (
		configPath      string
		agent           string
		undeliveredOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages for an agent",
		Long:  "Lists messages addressed to an agent in send order. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageList(cmd, configPath, agent, undeliveredOnly)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&agent, "agent", "", "receiving agent (required)")
	cmd.Flags().BoolVar(&undeliveredOnly, "undelivered", false, "show only undelivered messages")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func runMessageList(cmd *cobra.Command, configPath, agent string, undeliveredOnly bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rtr, err := buildRouter(cfg, gormDB)
	if err != nil {
		return err
	}

	var messages []models.Message
	if undeliveredOnly {
		messages, err = rtr.UndeliveredMessages(agent)
	} else {
		messages, err = rtr.Messages(agent)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(messages) == 0 {
		fmt.Fprintln(out, "No messages found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTYPE\tSENT\tDELIVERED\tCONTENT")
	for _, m := range messages {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			m.MessageID[:12], m.FromAgent, m.MessageType,
			m.SentAt.Format("2006-01-02 15:04:05"), m.Delivered, truncate(m.Content, 40))
	}
	w.Flush()
	return nil
}

func newMessageShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <message-id>",
		Short: "Show message details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runMessageShow(cmd *cobra.Command, configPath, messageID string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rtr, err := buildRouter(cfg, gormDB)
	if err != nil {
		return err
	}

	m, err := rtr.Get(messageID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:         %s\n", m.MessageID)
	fmt.Fprintf(out, "From:       %s\n", m.FromAgent)
	fmt.Fprintf(out, "To:         %s\n", m.ToAgent)
	fmt.Fprintf(out, "Type:       %s\n", m.MessageType)
	fmt.Fprintf(out, "Sent:       %s\n", m.SentAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Delivered:  %t\n", m.Delivered)
	fmt.Fprintf(out, "\nContent:\n%s\n", m.Content)
	return nil
}

func newMessageDeliverCmd() *cobra.Command {
	var (
		configPath string
		caller     string
	)

	cmd := &cobra.Command{
		Use:   "deliver <message-id>",
		Short: "Mark a message as delivered",
		Long:  "Marks a message delivered. Only the receiving agent may acknowledge delivery.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageDeliver(cmd, configPath, caller, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&caller, "caller", "", "receiving agent acknowledging delivery (required)")
	cmd.MarkFlagRequired("caller")
	return cmd
}

func runMessageDeliver(cmd *cobra.Command, configPath, caller, messageID string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rtr, err := buildRouter(cfg, gormDB)
	if err != nil {
		return err
	}

	if err := rtr.MarkDelivered(caller, messageID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Delivered message %s\n", messageID)
	return nil
}

func newMessageDelayCmd() *cobra.Command {
	var (
		configPath string
		caller     string
		set        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "delay",
		Short: "Show or set the minimum message delay",
		Long:  "Without --set, prints the current minimum delay between messages from one sender. With --set, updates it; only the pause authority may change the delay.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageDelay(cmd, configPath, caller, set)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&caller, "caller", "", "calling authority (required with --set)")
	cmd.Flags().DurationVar(&set, "set", 0, "new delay, e.g. 30s or 5m")
	return cmd
}

func runMessageDelay(cmd *cobra.Command, configPath, caller string, set time.Duration) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rtr, err := buildRouter(cfg, gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if set == 0 {
		delay, err := rtr.MessageDelay()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Message delay: %s\n", delay)
		return nil
	}

	if caller == "" {
		return fmt.Errorf("--caller is required with --set")
	}
	if err := rtr.UpdateDelay(caller, set); err != nil {
		return err
	}
	fmt.Fprintf(out, "Message delay set to %s\n", set)
	return nil
}
