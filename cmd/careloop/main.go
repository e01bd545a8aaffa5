package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "careloop",
	Short: "Careloop — care team reconciliation service",
	Long:  "Careloop keeps a consistent in-memory graph of care teams, members, and patients for one user session, reconciling team listings, patient rosters, pending invitations, and flagged-patient preferences from their backend services.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/careloop.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
