package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platformsec/rbacgate/internal/config"
	"github.com/platformsec/rbacgate/internal/services/authn"
)

var pskCmd = &cobra.Command{
	Use:   "psk",
	Short: "Service credential management commands",
}

var pskGenerateCmd = &cobra.Command{
	Use:   "generate <client-id>",
	Short: "Generate a pre-shared key for a service caller",
	Long: `Generates a new random pre-shared key and prints the SERVICE_PSKS entry
to merge into the gateway configuration. The secret is only printed once.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID := args[0]

		secret, err := authn.GenerateSecret()
		if err != nil {
			return err
		}

		entry := config.ServicePSKs{
			clientID: config.ServiceCredential{Secret: secret},
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode credential entry: %w", err)
		}

		fmt.Printf("Client ID: %s\n", clientID)
		fmt.Printf("Secret:    %s\n", secret)
		fmt.Printf("\nSERVICE_PSKS entry:\n%s\n", encoded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pskCmd)
	pskCmd.AddCommand(pskGenerateCmd)
}
