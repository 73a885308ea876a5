package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/profile"
	"github.com/spf13/cobra"
)

func newConfigCmd(opt *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(newConfigInitCmd(opt), newConfigShowCmd(opt))
	return cmd
}

func newConfigInitCmd(opt *Options) *cobra.Command {
	var baseURL, apiKey string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Long: "Writes ~/.wppdesk/config.toml, or the profile's own config.toml\n" +
			"when --profile is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := profile.ConfigPath()
			if opt.Profile != "" {
				if err := profile.ValidateName(opt.Profile); err != nil {
					return err
				}
				path = profile.ProfileConfigPath(opt.Profile)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			cfg.Backend.BaseURL = baseURL
			cfg.Backend.APIKey = apiKey
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "bot backend base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "bot backend API key")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(opt *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config of the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opt.profileName()
			if err != nil {
				return err
			}
			cfg, err := profile.LoadConfig(name)
			if err != nil {
				return err
			}
			if cfg.Backend.APIKey != "" {
				cfg.Backend.APIKey = "********"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# profile %s\n", name)
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}
