// admin is the moderation CLI for the omechat backend.
//
// Usage:
//
//	admin ban --session <id> | --ip <addr> | --fingerprint <fp> [--hours N] [--reason text]
//	admin unban <ban_id>
//	admin reports [--status NEW] [--limit 50]
//	admin resolve-report <report_id> [--reject]
//
// Bans are written to PostgreSQL and cached in Redis, so a running gateway
// refuses the banned session on its next connection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"omechat/backend/internal/config"
	"omechat/backend/internal/logging"
	"omechat/backend/internal/moderation"
	"omechat/backend/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "omechat moderation tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.AddCommand(banCmd, unbanCmd, reportsCmd, resolveReportCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openModeration connects the stores. The CLI runs outside the gateway, so
// there is no live session to kick.
func openModeration(ctx context.Context) (*moderation.Service, error) {
	cfg, err := config.LoadForAdmin()
	if err != nil {
		return nil, err
	}
	if _, err := logging.Init(cfg.Log); err != nil {
		return nil, err
	}
	st, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return moderation.NewService(st), nil
}
