package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gastrodx/gastrodx/internal/app"
	"github.com/gastrodx/gastrodx/internal/domain/catalog"
)

func diseasesCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "diseases",
		Short: "List diseases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				items, err := svcs.Catalog.ListDiseases(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCODE\tNAME")
				for _, d := range items {
					fmt.Fprintf(w, "%d\t%s\t%s\n", d.ID, d.Code, d.Name)
				}
				return w.Flush()
			})
		},
	}
}

func symptomsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "symptoms",
		Short: "List symptoms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				items, err := svcs.Catalog.ListSymptoms(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCODE\tNAME")
				for _, s := range items {
					fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.Code, s.Name)
				}
				return w.Flush()
			})
		},
	}
}

// resolveDisease accepts a numeric id or a disease code such as P001.
func resolveDisease(ctx context.Context, cat *catalog.Service, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	d, err := cat.GetDiseaseByCode(ctx, strings.ToUpper(ref))
	if err != nil {
		return 0, fmt.Errorf("disease %q: %w", ref, err)
	}
	return d.ID, nil
}

// resolveSymptoms accepts numeric ids and symptom codes in any mix.
func resolveSymptoms(ctx context.Context, cat *catalog.Service, refs []string) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		s, err := cat.GetSymptomByCode(ctx, strings.ToUpper(ref))
		if err != nil {
			return nil, fmt.Errorf("symptom %q: %w", ref, err)
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}
