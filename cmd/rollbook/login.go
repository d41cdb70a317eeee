package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rollbook/rollbook/internal/auth"
	"github.com/rollbook/rollbook/internal/record"
	"github.com/rollbook/rollbook/internal/remote"
)

func openSession() (*auth.Session, error) {
	return auth.OpenSession(filepath.Join(viper.GetString("data_dir"), "session.json"))
}

var loginCmd = &cobra.Command{
	Use:   "login UID",
	Short: "Sign in as the given account",
	Long: `Record UID as the signed-in account. Remote operations run against
this account's data until 'rollbook logout'. The session survives restarts.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		session, err := openSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := session.Login(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error signing in: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Signed in as %s\n", args[0])
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Run: func(cmd *cobra.Command, args []string) {
		session, err := openSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := session.Logout(); err != nil {
			fmt.Fprintf(os.Stderr, "Error signing out: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Signed out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Run: func(cmd *cobra.Command, args []string) {
		provider, err := principalProvider()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		uid, err := provider.CurrentPrincipal()
		if err != nil {
			fmt.Println("Not signed in")
			return
		}
		fmt.Println(uid)
	},
}

var (
	profileName  string
	profileEmail string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Write the account profile to the remote store",
	Run: func(cmd *cobra.Command, args []string) {
		provider, err := principalProvider()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		uid, err := provider.CurrentPrincipal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		client, err := remote.Open(viper.GetString("remote.driver"), viper.GetString("remote.dsn"), provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()

		profile := record.Teacher{
			ID:        uid,
			Name:      profileName,
			Email:     profileEmail,
			CreatedAt: time.Now(),
		}
		if err := client.SaveProfile(cmd.Context(), profile); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving profile: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Profile saved")
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileName, "name", "", "display name (required)")
	profileCmd.Flags().StringVar(&profileEmail, "email", "", "contact email")
	_ = profileCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, profileCmd)
}
