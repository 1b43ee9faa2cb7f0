package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/avramovic/golabot/internal/config"
	"github.com/avramovic/golabot/internal/doctor"
	"github.com/spf13/cobra"
)

var doctorJSON bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "emit the report as JSON")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration, storage and connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			// Continue with nil config so the checks can explain why.
			cfg = nil
		}

		diag := doctor.Run(cmd.Context(), cfg, Version)

		if doctorJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(diag)
		}

		fmt.Printf("Golabot Doctor Report (%s)\n", diag.Timestamp.Format(time.RFC3339))
		fmt.Printf("System: %s/%s (%s)\n", diag.System.OS, diag.System.Arch, diag.System.Go)
		fmt.Println("---")

		failCount := 0
		for _, res := range diag.Results {
			icon := "✅"
			switch res.Status {
			case "FAIL":
				icon = "❌"
				failCount++
			case "WARN":
				icon = "⚠️ "
			case "SKIP":
				icon = "⏩"
			}

			fmt.Printf("%s %-14s: %s\n", icon, res.Name, res.Message)
			if res.Detail != "" {
				fmt.Printf("    %s\n", res.Detail)
			}
		}

		if failCount > 0 {
			os.Exit(1)
		}
		return nil
	},
}
