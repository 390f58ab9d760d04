package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/parlane/switchyard/internal/resources"
	"github.com/spf13/cobra"
)

func newResourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Resource registry commands",
	}

	cmd.AddCommand(newResourcePutCmd())
	cmd.AddCommand(newResourceShowCmd())
	cmd.AddCommand(newResourceListCmd())
	cmd.AddCommand(newResourceRemoveCmd())
	return cmd
}

func newResourcePutCmd() *cobra.Command {
	var (
		configPath string
		owner      string
		name       string
		uri        string
		metadata   []string
	)

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Create or update a resource",
		Long:  "Registers a named resource under an agent, or updates it when the agent already owns it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourcePut(cmd, configPath, owner, name, uri, metadata)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&owner, "owner", "", "owning agent (required)")
	cmd.Flags().StringVar(&name, "name", "", "resource name (required)")
	cmd.Flags().StringVar(&uri, "uri", "", "resource URI (required)")
	cmd.Flags().StringSliceVar(&metadata, "meta", nil, "metadata entry as key=value (repeatable)")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("uri")
	return cmd
}

func runResourcePut(cmd *cobra.Command, configPath, owner, name, uri string, metadata []string) error {
	meta := make(map[string]any, len(metadata))
	for _, entry := range metadata {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return fmt.Errorf("invalid --meta entry %q (want key=value)", entry)
		}
		meta[key] = value
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(gormDB)
	if err != nil {
		return err
	}

	if err := registry.Put(owner, name, uri, meta); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored resource %s\n", name)
	return nil
}

func newResourceShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show resource details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourceShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	return cmd
}

func runResourceShow(cmd *cobra.Command, configPath, name string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(gormDB)
	if err != nil {
		return err
	}

	resource, err := registry.Get(name)
	if err != nil {
		return err
	}
	if resource.Name == "" {
		return fmt.Errorf("resource %q not found", name)
	}

	meta, err := resources.MetadataMap(resource)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:     %s\n", resource.Name)
	fmt.Fprintf(out, "Owner:    %s\n", resource.Owner)
	fmt.Fprintf(out, "URI:      %s\n", resource.URI)
	fmt.Fprintf(out, "Created:  %s\n", resource.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:  %s\n", resource.UpdatedAt.Format("2006-01-02 15:04:05"))
	if len(meta) > 0 {
		keys := make([]string, 0, len(meta))
		for key := range meta {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "\nMetadata:")
		for _, key := range keys {
			fmt.Fprintf(out, "  %s: %v\n", key, meta[key])
		}
	}
	return nil
}

func newResourceListCmd() *cobra.Command {
	var (
		configPath string
		owner      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourceList(cmd, configPath, owner)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&owner, "owner", "", "owning agent (required)")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func runResourceList(cmd *cobra.Command, configPath, owner string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(gormDB)
	if err != nil {
		return err
	}

	list, err := registry.ListByOwner(owner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No resources found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURI\tUPDATED")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			r.Name, truncate(r.URI, 50), r.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	return nil
}

func newResourceRemoveCmd() *cobra.Command {
	var (
		configPath string
		owner      string
	)

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a resource",
		Long:  "Deletes a resource from the registry. Only the owning agent may remove it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourceRemove(cmd, configPath, owner, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchyard config file")
	cmd.Flags().StringVar(&owner, "owner", "", "owning agent (required)")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func runResourceRemove(cmd *cobra.Command, configPath, owner, name string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(gormDB)
	if err != nil {
		return err
	}

	if err := registry.Remove(owner, name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed resource %s\n", name)
	return nil
}
