package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/infrastructure/auth"
)

var (
	tokenUserID   string
	tokenUsername string
	tokenRole     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token",
	Long: `Signs an access token with the configured JWT secret.
Only tokens with the admin role may trigger or inspect sync runs.`,
	Args: cobra.NoArgs,
	RunE: issueToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id (uuid); a random id is used when empty")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "username recorded in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleAdmin, "role granted by the token")
	rootCmd.AddCommand(tokenCmd)
}

func issueToken(cmd *cobra.Command, _ []string) error {
	userID := uuid.New()
	if tokenUserID != "" {
		parsed, err := uuid.Parse(tokenUserID)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", tokenUserID, err)
		}
		userID = parsed
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	token, expiresAt, err := auth.NewJWTService(cfg.JWT).GenerateAccessToken(auth.GenerateTokenInput{
		UserID:   userID,
		Username: tokenUsername,
		Role:     tokenRole,
	})
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	cmd.PrintErrf("user %s, role %s, expires %s\n", userID, tokenRole, expiresAt.Format(time.RFC3339))
	return nil
}
