package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage job board connections",
}

var connectionsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the health of every connection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		health, err := env.Connections.CheckHealth(ctx, userID)
		if err != nil {
			return err
		}
		if len(health) == 0 {
			fmt.Fprintln(os.Stderr, "No connections found.")
			return nil
		}
		formatHealth(os.Stdout, health)
		return nil
	},
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add <provider>",
	Short: "Store an access token for a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")
		access, _ := cmd.Flags().GetString("access-token")
		refresh, _ := cmd.Flags().GetString("refresh-token")
		expiresIn, _ := cmd.Flags().GetInt64("expires-in")
		if access == "" {
			return eris.New("--access-token is required")
		}

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		conn, err := env.Connections.CreateConnection(ctx, userID, args[0], access, refresh, expiresIn)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Connected %s (%s)\n", conn.ProviderID, conn.ID)
		return nil
	},
}

var connectionsAuthorizeCmd = &cobra.Command{
	Use:   "authorize <provider>",
	Short: "Print the OAuth authorization URL for a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		authURL, err := env.OAuth.AuthorizationURL(args[0], userID)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, authURL)
		return nil
	},
}

var connectionsRefreshCmd = &cobra.Command{
	Use:   "refresh <connection-id>",
	Short: "Refresh a connection's access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		conn, err := env.Connections.RefreshConnection(ctx, userID, args[0])
		if err != nil {
			return err
		}
		expires := "never"
		if conn.TokenExpiresAt != nil {
			expires = conn.TokenExpiresAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(os.Stdout, "Refreshed %s, expires %s\n", conn.ID, expires)
		return nil
	},
}

var connectionsValidateCmd = &cobra.Command{
	Use:   "validate <connection-id>",
	Short: "Check a connection's token against its provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		ok, err := env.Connections.ValidateConnection(ctx, userID, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("connection %s: token rejected by provider", args[0])
		}
		fmt.Fprintf(os.Stdout, "Connection %s is valid\n", args[0])
		return nil
	},
}

var connectionsDisconnectCmd = &cobra.Command{
	Use:   "disconnect <connection-id>",
	Short: "Revoke a connection and discard its tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Connections.DisconnectConnection(ctx, userID, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Disconnected %s\n", args[0])
		return nil
	},
}

func init() {
	connectionsAddCmd.Flags().String("access-token", "", "provider access token or API key")
	connectionsAddCmd.Flags().String("refresh-token", "", "OAuth refresh token")
	connectionsAddCmd.Flags().Int64("expires-in", 0, "token lifetime in seconds (0 = no expiry)")

	connectionsCmd.PersistentFlags().String("user", "local", "user id")
	connectionsCmd.AddCommand(
		connectionsHealthCmd,
		connectionsAddCmd,
		connectionsAuthorizeCmd,
		connectionsRefreshCmd,
		connectionsValidateCmd,
		connectionsDisconnectCmd,
	)
	rootCmd.AddCommand(connectionsCmd)
}
