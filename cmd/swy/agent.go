package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent directory commands",
	}

	cmd.AddCommand(newAgentRegisterCmd())
	cmd.AddCommand(newAgentShowCmd())
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentFindCmd())
	cmd.AddCommand(newAgentUpdateEndpointCmd())
	cmd.AddCommand(newAgentDeactivateCmd())
	cmd.AddCommand(newAgentReactivateCmd())
	cmd.AddCommand(newAgentReputationCmd())
	return cmd
}

func newAgentRegisterCmd() *cobra.Command {
	var (
		configPath   string
		owner        string
		name         string
		endpoint     string
		capabilities []string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new agent",
		Long:  "Registers an agent in the directory with its endpoint and capability set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentRegister(cmd, configPath, owner, name, endpoint, capabilities)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&owner, "owner", "", "agent identity key (required)")
	cmd.Flags().StringVar(&name, "name", "", "human-readable agent name (required)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "agent endpoint (required)")
	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "capability to index (repeatable)")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("endpoint")
	return cmd
}

func runAgentRegister(cmd *cobra.Command, configPath, owner, name, endpoint string, capabilities []string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(gormDB)
	if err != nil {
		return err
	}

	if err := dir.Register(owner, name, endpoint, capabilities); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Registered agent %s\n", owner)
	if len(capabilities) > 0 {
		fmt.Fprintf(out, "Capabilities: %s\n", strings.Join(capabilities, ", "))
	}
	return nil
}

func newAgentShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <owner>",
		Short: "Show agent details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runAgentShow(cmd *cobra.Command, configPath, owner string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(gormDB)
	if err != nil {
		return err
	}

	agent, err := dir.Get(owner)
	if err != nil {
		return err
	}
	if !agent.Registered() {
		return fmt.Errorf("agent %q is not registered", owner)
	}

	caps, err := dir.Capabilities(owner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Owner:       %s\n", agent.Owner)
	fmt.Fprintf(out, "Name:        %s\n", agent.Name)
	fmt.Fprintf(out, "Endpoint:    %s\n", agent.Endpoint)
	fmt.Fprintf(out, "Reputation:  %d\n", agent.Reputation)
	fmt.Fprintf(out, "Active:      %t\n", agent.Active)
	fmt.Fprintf(out, "Registered:  %s\n", agent.RegisteredAt.Format("2006-01-02 15:04:05"))
	if len(caps) > 0 {
		fmt.Fprintf(out, "Capabilities: %s\n", strings.Join(caps, ", "))
	}
	return nil
}

func newAgentListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		Long:  "Lists the full roster in registration order. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runAgentList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(gormDB)
	if err != nil {
		return err
	}

	agents, err := dir.Roster()
	if err != nil {
		return err
	}
	active, err := dir.ActiveCount()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(agents) == 0 {
		fmt.Fprintln(out, "No agents registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tNAME\tENDPOINT\tREP\tACTIVE")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n",
			a.Owner, truncate(a.Name, 30), truncate(a.Endpoint, 40), a.Reputation, a.Active)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d agents, %d active\n", len(agents), active)
	return nil
}

func newAgentFindCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "find <capability>",
		Short: "Find agents by capability",
		Long:  "Lists every agent ever indexed under a capability, including deactivated ones.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentFind(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runAgentFind(cmd *cobra.Command, configPath, capability string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(gormDB)
	if err != nil {
		return err
	}

	owners, err := dir.FindByCapability(capability)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(owners) == 0 {
		fmt.Fprintf(out, "No agents indexed under %q.\n", capability)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tNAME\tACTIVE")
	for _, owner := range owners {
		agent, err := dir.Get(owner)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%t\n", agent.Owner, truncate(agent.Name, 30), agent.Active)
	}
	w.Flush()
	return nil
}

func newAgentUpdateEndpointCmd() *cobra.Command {
	var (
		configPath string
		owner      string
		endpoint   string
	)

	cmd := &cobra.Command{
		Use:   "update-endpoint",
		Short: "Update an agent's endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentUpdateEndpoint(cmd, configPath, owner, endpoint)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&owner, "owner", "", "agent identity key (required)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "new endpoint (required)")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("endpoint")
	return cmd
}

func runAgentUpdateEndpoint(cmd *cobra.Command, configPath, owner, endpoint string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(gormDB)
	if err != nil {
		return err
	}

	if err := dir.UpdateEndpoint(owner, endpoint); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated endpoint for %s\n", owner)
	return nil
}

func newAgentDeactivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deactivate <owner>",
		Short: "Deactivate an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentSetActive(cmd, configPath, args[0], false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func newAgentReactivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reactivate <owner>",
		Short: "Reactivate a deactivated agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentSetActive(cmd, configPath, args[0], true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runAgentSetActive(cmd *cobra.Command, configPath, owner string, active bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(gormDB)
	if err != nil {
		return err
	}

	if active {
		err = dir.Reactivate(owner)
	} else {
		err = dir.Deactivate(owner)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if active {
		fmt.Fprintf(out, "Reactivated agent %s\n", owner)
	} else {
		fmt.Fprintf(out, "Deactivated agent %s\n", owner)
	}
	return nil
}

func newAgentReputationCmd() *cobra.Command {
	var (
		configPath string
		caller     string
		owner      string
		increase   int
		decrease   int
	)

	cmd := &cobra.Command{
		Use:   "reputation",
		Short: "Adjust an agent's reputation",
		Long:  "Raises or lowers an agent's reputation score. Only the pause authority may adjust scores; values saturate at the bounds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentReputation(cmd, configPath, caller, owner, increase, decrease)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&caller, "caller", "", "calling authority (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "agent identity key (required)")
	cmd.Flags().IntVar(&increase, "increase", 0, "amount to raise the score by")
	cmd.Flags().IntVar(&decrease, "decrease", 0, "amount to lower the score by")
	cmd.MarkFlagRequired("caller")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func runAgentReputation(cmd *cobra.Command, configPath, caller, owner string, increase, decrease int) error {
	if (increase == 0) == (decrease == 0) {
		return fmt.Errorf("exactly one of --increase or --decrease must be set")
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(gormDB)
	if err != nil {
		return err
	}

	if increase > 0 {
		err = dir.IncreaseReputation(caller, owner, increase)
	} else {
		err = dir.DecreaseReputation(caller, owner, decrease)
	}
	if err != nil {
		return err
	}

	agent, err := dir.Get(owner)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reputation of %s is now %d\n", owner, agent.Reputation)
	return nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
