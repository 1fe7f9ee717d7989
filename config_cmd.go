package main

import (
	"github.com/spf13/cobra"

	"github.com/brainmappy/brainmaps-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if flagJSON {
				return printJSON(resolvedCfg)
			}

			return config.RenderEffective(resolvedCfg, stdout)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <section.key> <value>",
		Short: "Set a value in the config file",
		Long: `Writes one key to the config file, creating it with commented defaults if
needed. The change is validated first; an invalid value leaves the file as is.

Example: brainmaps config set api.default_volume 772153499790:h01:goog14r0s5c3`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.SetKey(resolvedCfg.ConfigPath, args[0], args[1]); err != nil {
				return err
			}

			statusf("Set %s in %s\n", args[0], resolvedCfg.ConfigPath)

			return nil
		},
	}
}
