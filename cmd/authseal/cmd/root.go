package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version stamped at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "authseal",
	Short: "AuthSeal is a cookie-based authentication service",
	Long: `A stateless authentication service: sealed-cookie sessions, OAuth2
sign-in, and WebAuthn passkeys, with no server-side session database.
Complete documentation is available at https://github.com/jmcleod/authseal`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
