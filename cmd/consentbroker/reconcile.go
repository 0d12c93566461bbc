package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	id "consentbroker/pkg/domain"
)

func newReconcileCmd(a *app) *cobra.Command {
	var (
		ownerFlag string
		active    bool
	)
	cmd := &cobra.Command{
		Use:     "reconcile",
		Short:   "Mark an owner active or inactive across the directory and its consents",
		Example: "  consentbroker reconcile --owner 6ba7b810-9dad-11d1-80b4-00c04fd430c8 --active=false",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, err := id.ParseOwnerID(ownerFlag)
			if err != nil {
				return err
			}
			c, err := buildCore(cmd.Context(), a.cfg, a.logger, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.reconciler(a.logger).SetOwnerActive(cmd.Context(), ownerID, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "owner %s active=%t consents_changed=%d\n",
				res.OwnerID, res.Active, res.ConsentsChanged)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerFlag, "owner", "", "owner (provider) ID")
	cmd.Flags().BoolVar(&active, "active", true, "target activity flag")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("active")
	return cmd
}
