package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"seriosity/internal/score"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
)

// Reconciler checks and repairs stored scores.
type Reconciler interface {
	ReconcileScore(ctx context.Context, tenantID id.TenantID) error
	Recompute(ctx context.Context, tenantID id.TenantID) (score.StoredScore, error)
	ListTenantIDs(ctx context.Context) ([]id.TenantID, error)
}

var errDrift = errors.New("stored scores disagree with their evidence")

func ReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check stored scores against a fresh computation",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			repair, _ := cmd.Flags().GetBool("repair")

			app, _, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			var tenants []id.TenantID
			if tenant != "" {
				tenantID, err := id.ParseTenantID(tenant)
				if err != nil {
					return err
				}
				tenants = []id.TenantID{tenantID}
			} else if tenants, err = app.Evidence.ListTenantIDs(cmd.Context()); err != nil {
				return err
			}
			return reconcile(cmd.Context(), app.Evidence, tenants, repair, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("tenant", "", "Only reconcile this tenant (default: all tenants)")
	cmd.Flags().Bool("repair", false, "Recompute and store scores that drifted")
	return cmd
}

func RecomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute <tenant-id>",
		Short: "Recompute and store one tenant's score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := id.ParseTenantID(args[0])
			if err != nil {
				return err
			}
			app, _, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			stored, err := app.Evidence.Recompute(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s total=%d\n", tenantID, stored.Breakdown.Total())
			return nil
		},
	}
	return cmd
}

// reconcile reports every drifted tenant and optionally repairs it. It
// returns errDrift when any drift is left unrepaired.
func reconcile(ctx context.Context, r Reconciler, tenants []id.TenantID, repair bool, out io.Writer) error {
	var drifted, repaired int
	for _, tenantID := range tenants {
		err := r.ReconcileScore(ctx, tenantID)
		if err == nil {
			continue
		}
		if !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return fmt.Errorf("reconcile %s: %w", tenantID, err)
		}
		drifted++
		fmt.Fprintf(out, "DRIFT %s: %v\n", tenantID, err)
		if !repair {
			continue
		}
		stored, err := r.Recompute(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("repair %s: %w", tenantID, err)
		}
		repaired++
		fmt.Fprintf(out, "REPAIRED %s total=%d\n", tenantID, stored.Breakdown.Total())
	}
	fmt.Fprintf(out, "Checked %d tenants, %d drifted, %d repaired.\n", len(tenants), drifted, repaired)
	if drifted > repaired {
		return errDrift
	}
	return nil
}
