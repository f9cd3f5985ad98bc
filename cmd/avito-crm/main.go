// Command avito-crm runs the CRM backend for Avito Messenger chats and the
// maintenance commands that go with it.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Set by -ldflags "-X main.version=...".
var version = "dev"

// @title                       Avito CRM API
// @version                     1.0
// @description                 Operator API, Avito webhook receiver and realtime stream for Avito Messenger chats.
// @BasePath                    /api
// @securityDefinitions.apikey  CRMToken
// @in                          header
// @name                        X-CRM-Token
func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "avito-crm",
		Short:         "CRM backend for Avito Messenger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("avito-crm %s\n", version))
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newReconcileCmd(),
		newSubscriptionsCmd(),
	)
	return root
}
