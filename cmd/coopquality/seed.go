package main

import (
	"encoding/json"
	"fmt"

	"coopquality/internal/catalog"
	"coopquality/pkg/domain"

	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog.yaml>",
		Short: "Load parameters, criteria, standards and certifications from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Load(args[0])
			if err != nil {
				return a.fail(err)
			}
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			defer func() { _ = closeStore() }()
			rep, err := catalog.Seed(cmd.Context(), svc, c)
			if err != nil {
				return a.fail(err)
			}
			if a.jsonOutput {
				return json.NewEncoder(a.stdout).Encode(rep)
			}
			for _, e := range []domain.EntityType{domain.EntityParameter, domain.EntityCriterion, domain.EntityStandard, domain.EntityCertification} {
				fmt.Fprintf(a.stdout, "%-22s created %d, skipped %d\n", e, rep.Created[e], rep.Skipped[e])
			}
			return nil
		},
	}
}
