package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loykin/crawlsend/internal/constants"
)

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage persisted crawler settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List persisted settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				doc, err := a.loadDoc()
				if err != nil {
					return err
				}
				st, err := a.openStore(cmd.Context(), doc)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()

				settings, err := st.ListSettings(cmd.Context())
				if err != nil {
					return err
				}
				key := color.New(color.FgCyan)
				for _, s := range settings {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key.Sprint(s.Name), s.Value)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <name>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name, err := settingName(args[0])
				if err != nil {
					return err
				}
				doc, err := a.loadDoc()
				if err != nil {
					return err
				}
				st, err := a.openStore(cmd.Context(), doc)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()

				value, err := st.GetSetting(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("setting %s: %w", name, err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <name> <value>",
			Short: "Persist a setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				name, err := settingName(args[0])
				if err != nil {
					return err
				}
				doc, err := a.loadDoc()
				if err != nil {
					return err
				}
				st, err := a.openStore(cmd.Context(), doc)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				return st.SetSetting(cmd.Context(), name, args[1])
			},
		},
		&cobra.Command{
			Use:   "unset <name>",
			Short: "Remove a persisted setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name, err := settingName(args[0])
				if err != nil {
					return err
				}
				doc, err := a.loadDoc()
				if err != nil {
					return err
				}
				st, err := a.openStore(cmd.Context(), doc)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				return st.DeleteSetting(cmd.Context(), name)
			},
		},
	)
	return cmd
}

func settingName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !slices.Contains(constants.SettingKeys, name) {
		return "", fmt.Errorf("unknown setting %q (valid: %s)", name, strings.Join(constants.SettingKeys, ", "))
	}
	return name, nil
}
