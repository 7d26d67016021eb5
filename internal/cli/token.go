package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"seriosity/internal/platform/config"
	id "seriosity/pkg/domain"
	"seriosity/pkg/platform/middleware/auth"
	"seriosity/pkg/requestcontext"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token signed with JWT_SIGNING_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := id.ParseUserID(args[0])
			if err != nil {
				return err
			}
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			switch requestcontext.Role(role) {
			case requestcontext.RoleTenant, requestcontext.RoleLandlord, requestcontext.RoleOperator:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			token, err := auth.NewHMACValidator(cfg.JWTSigningKey, cfg.JWTIssuer).Sign(
				requestcontext.AuthenticatedActor{UserID: userID, Role: requestcontext.Role(role)}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("role", string(requestcontext.RoleOperator), "tenant, landlord or operator")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}
