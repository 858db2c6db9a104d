package main

import (
	"encoding/json"

	"coopquality/internal/report"

	"github.com/spf13/cobra"
)

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one certification expiry sweep and print the raised alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			defer func() { _ = closeStore() }()
			rep, _, err := svc.SweepCertifications(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			if a.jsonOutput {
				return json.NewEncoder(a.stdout).Encode(rep)
			}
			report.New(a.stdout).Sweep(rep)
			return nil
		},
	}
}
