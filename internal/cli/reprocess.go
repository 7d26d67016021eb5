package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	id "seriosity/pkg/domain"
)

func ReprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprocess <interview-id>",
		Short: "Reset an interview's results and optionally run the pipeline again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interviewID, err := id.ParseInterviewID(args[0])
			if err != nil {
				return err
			}
			process, _ := cmd.Flags().GetBool("process")

			app, _, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			iv, err := app.Interviews.ReprocessInterview(cmd.Context(), interviewID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reset (attempt %d)\n", iv.ID, iv.Attempt)
			if !process {
				return nil
			}
			iv, err = app.Interviews.ProcessInterview(cmd.Context(), interviewID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", iv.ID, iv.Status)
			return nil
		},
	}
	cmd.Flags().Bool("process", false, "Run the processing pipeline after the reset")
	return cmd
}

func SyncOutcomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-outcome <interview-id>",
		Short: "Copy a finished interview's outcome into the tenant's evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interviewID, err := id.ParseInterviewID(args[0])
			if err != nil {
				return err
			}
			app, _, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			iv, err := app.Interviews.SyncOutcome(cmd.Context(), interviewID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s recorded for tenant %s\n", iv.ID, iv.Status, iv.TenantID)
			return nil
		},
	}
	return cmd
}

func RegisterPropertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register-property <property-id> <landlord-id>",
		Short: "Record which landlord owns a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			propertyID, err := id.ParsePropertyID(args[0])
			if err != nil {
				return err
			}
			landlordID, err := id.ParseLandlordID(args[1])
			if err != nil {
				return err
			}
			app, _, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Properties.RegisterProperty(cmd.Context(), propertyID, landlordID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", propertyID, landlordID)
			return nil
		},
	}
	return cmd
}
