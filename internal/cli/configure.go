package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/farid/maktaba/internal/config"
)

var (
	configureToken   string
	configureCatalog string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the bot configuration",
	Long: `Write the bot configuration file with the given bot token and
catalog path, keeping defaults for everything else.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureToken, "token", "", "Telegram bot token (required)")
	configureCmd.Flags().StringVar(&configureCatalog, "catalog", "", "catalog base path (required)")
	_ = configureCmd.MarkFlagRequired("token")
	_ = configureCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	cfg.Telegram.BotToken = configureToken
	cfg.Catalog.BasePath = configureCatalog

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Configuration saved to: %s\n", loader.GetConfigPath())
	fmt.Println("Start the bot with: maktaba start")
	return nil
}
