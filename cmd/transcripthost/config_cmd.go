package main

import (
	"encoding/json"
	"fmt"
	"io"

	"transcripthost/internal/config"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long: "Read and edit the config file. Secrets are masked on output; " +
			"set writes the file back without expanding ${VAR} placeholders.",
	}
	cmd.AddCommand(configGetCmd(), configSetCmd(), configListCmd(), configPathCmd())
	return cmd
}

func configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print one value, e.g. server.port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(resolveConfigPath())
			if err != nil {
				return err
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), val)
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Change one value, e.g. index.backend sqlite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.LoadFile(cfgPath)
			if err != nil {
				return err
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			val, _ := config.GetByPath(config.Sanitize(cfg), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], val)
			return nil
		},
	}
}

func configListCmd() *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the effective config with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(resolveConfigPath())
			if err != nil {
				return err
			}
			safe := config.Sanitize(cfg)
			if !flat {
				return printJSON(cmd.OutOrStdout(), safe)
			}
			paths := config.ListPaths(safe)
			for _, key := range config.SortedPaths(paths) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, paths[key])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "one path = value line per setting")
	return cmd
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
