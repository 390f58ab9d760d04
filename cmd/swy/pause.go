package main

import (
	"fmt"

	"github.com/parlane/switchyard/internal/pausegate"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newPauseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause gate commands",
	}

	cmd.AddCommand(newPauseSetCmd())
	cmd.AddCommand(newPauseClearCmd())
	cmd.AddCommand(newPauseStatusCmd())
	cmd.AddCommand(newPauseTransferCmd())
	return cmd
}

func gateForDomain(gormDB *gorm.DB, domain string) (*pausegate.Gate, error) {
	switch domain {
	case "directory":
		return pausegate.New(gormDB, pausegate.DomainDirectory)
	case "router":
		return pausegate.New(gormDB, pausegate.DomainRouter)
	default:
		return nil, fmt.Errorf("unknown domain %q (want directory or router)", domain)
	}
}

func newPauseSetCmd() *cobra.Command {
	var (
		configPath string
		caller     string
		domain     string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Pause a domain",
		Long:  "Pauses all mutations in a domain. Reads keep working while paused.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPauseSet(cmd, configPath, caller, domain, true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&caller, "caller", "", "calling authority (required)")
	cmd.Flags().StringVar(&domain, "domain", "", "domain to pause: directory or router (required)")
	cmd.MarkFlagRequired("caller")
	cmd.MarkFlagRequired("domain")
	return cmd
}

func newPauseClearCmd() *cobra.Command {
	var (
		configPath string
		caller     string
		domain     string
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Unpause a domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPauseSet(cmd, configPath, caller, domain, false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&caller, "caller", "", "calling authority (required)")
	cmd.Flags().StringVar(&domain, "domain", "", "domain to unpause: directory or router (required)")
	cmd.MarkFlagRequired("caller")
	cmd.MarkFlagRequired("domain")
	return cmd
}

func runPauseSet(cmd *cobra.Command, configPath, caller, domain string, paused bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	gate, err := gateForDomain(gormDB, domain)
	if err != nil {
		return err
	}

	if paused {
		err = gate.Pause(caller)
	} else {
		err = gate.Unpause(caller)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if paused {
		fmt.Fprintf(out, "Paused domain %s\n", domain)
	} else {
		fmt.Fprintf(out, "Unpaused domain %s\n", domain)
	}
	return nil
}

func newPauseStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pause status for both domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPauseStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runPauseStatus(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, domain := range []string{"directory", "router"} {
		gate, err := gateForDomain(gormDB, domain)
		if err != nil {
			return err
		}
		paused, err := gate.IsPaused()
		if err != nil {
			return err
		}
		authority, err := gate.Authority()
		if err != nil {
			return err
		}
		state := "running"
		if paused {
			state = "PAUSED"
		}
		fmt.Fprintf(out, "%s: %s (authority %s)\n", domain, state, authority)
	}
	return nil
}

func newPauseTransferCmd() *cobra.Command {
	var (
		configPath string
		caller     string
		domain     string
		next       string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer pause authority",
		Long:  "Hands a domain's pause authority to a new holder. Only the current authority may transfer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPauseTransfer(cmd, configPath, caller, domain, next)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&caller, "caller", "", "current authority (required)")
	cmd.Flags().StringVar(&domain, "domain", "", "domain: directory or router (required)")
	cmd.Flags().StringVar(&next, "to", "", "new authority (required)")
	cmd.MarkFlagRequired("caller")
	cmd.MarkFlagRequired("domain")
	cmd.MarkFlagRequired("to")
	return cmd
}

func runPauseTransfer(cmd *cobra.Command, configPath, caller, domain, next string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	gate, err := gateForDomain(gormDB, domain)
	if err != nil {
		return err
	}

	if err := gate.TransferAuthority(caller, next); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Transferred %s authority to %s\n", domain, next)
	return nil
}
