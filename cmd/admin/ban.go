package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"omechat/backend/internal/moderation"
)

var (
	flagSession     string
	flagIP          string
	flagFingerprint string
	flagHours       int
	flagReason      string
)

var banCmd = &cobra.Command{
	Use:   "ban",
	Short: "Ban a session, IP address or device fingerprint",
	Long: `Create a ban. At least one of --session, --ip or --fingerprint is required.
Without --hours the ban is permanent.

Examples:
  admin ban --session 6f1c... --hours 24 --reason spam
  admin ban --ip 203.0.113.7`,
	Args: cobra.NoArgs,
	RunE: runBan,
}

var unbanCmd = &cobra.Command{
	Use:   "unban <ban_id>",
	Short: "Lift a ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openModeration(cmd.Context())
		if err != nil {
			return err
		}
		if err := svc.Unban(args[0]); err != nil {
			return err
		}
		fmt.Printf("Ban %s has been lifted.\n", args[0])
		return nil
	},
}

func init() {
	banCmd.Flags().StringVar(&flagSession, "session", "", "session id to ban")
	banCmd.Flags().StringVar(&flagIP, "ip", "", "IP address to ban")
	banCmd.Flags().StringVar(&flagFingerprint, "fingerprint", "", "device fingerprint to ban")
	banCmd.Flags().IntVar(&flagHours, "hours", 0, "ban length in hours (0 = permanent)")
	banCmd.Flags().StringVar(&flagReason, "reason", "manual ban", "reason shown to moderators")
}

func runBan(cmd *cobra.Command, _ []string) error {
	if flagHours < 0 {
		return fmt.Errorf("--hours must not be negative")
	}
	svc, err := openModeration(cmd.Context())
	if err != nil {
		return err
	}
	ban, err := svc.Ban(moderation.BanRequest{
		SessionID:         flagSession,
		IPAddress:         flagIP,
		DeviceFingerprint: flagFingerprint,
		Reason:            flagReason,
		Duration:          time.Duration(flagHours) * time.Hour,
	})
	if err != nil {
		return err
	}

	until := "permanently"
	if ban.ExpiresAt != nil {
		until = "until " + ban.ExpiresAt.Format(time.RFC3339)
	}
	fmt.Printf("Ban %s created, %s.\n", ban.ID, until)
	return nil
}
