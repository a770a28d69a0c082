package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gastrodx/gastrodx/internal/app"
	"github.com/gastrodx/gastrodx/internal/domain/rules"
)

var errNotConfirmed = errors.New("refusing to delete without --yes")

func rulesCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List, show, add and delete diagnosis rules",
	}
	cmd.AddCommand(rulesListCmd(open))
	cmd.AddCommand(rulesShowCmd(open))
	cmd.AddCommand(rulesAddCmd(open))
	cmd.AddCommand(rulesDeleteCmd(open))
	cmd.AddCommand(rulesUnlinkCmd(open))
	cmd.AddCommand(rulesNextCodeCmd(open))
	return cmd
}

func rulesListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every rule with its disease and symptoms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				items, err := svcs.Rules.ListRules(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCODE\tDISEASE\tNAME\tSYMPTOMS")
				for _, r := range items {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Code, r.DiseaseCode, r.Name, symptomCodes(r))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rule(s)\n", len(items))
				return nil
			})
		},
	}
}

func rulesShowCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show CODE",
		Short: "Show one rule and its symptom links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				r, err := svcs.Rules.GetRuleByCode(ctx, strings.ToUpper(args[0]))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Code:     %s\n", r.Code)
				fmt.Fprintf(out, "Name:     %s\n", r.Name)
				fmt.Fprintf(out, "Disease:  %s %s\n", r.DiseaseCode, r.DiseaseName)
				if r.Citation != nil {
					fmt.Fprintf(out, "Citation: %s\n", *r.Citation)
				}
				fmt.Fprintln(out)

				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "LINK\tSYMPTOM\tNAME")
				for _, s := range r.Symptoms {
					fmt.Fprintf(w, "%d\t%s\t%s\n", s.LinkID, s.Code, s.Name)
				}
				return w.Flush()
			})
		},
	}
}

func rulesAddCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule; the code defaults to the next free one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			diseaseRef, _ := cmd.Flags().GetString("disease")
			name, _ := cmd.Flags().GetString("name")
			symptomRefs, _ := cmd.Flags().GetStringSlice("symptoms")
			citationFlag, _ := cmd.Flags().GetString("citation")

			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				if strings.TrimSpace(code) == "" {
					next, err := svcs.Rules.NextCode(ctx)
					if err != nil {
						return err
					}
					code = next
				}
				diseaseID, err := resolveDisease(ctx, svcs.Catalog, diseaseRef)
				if err != nil {
					return err
				}
				symptomIDs, err := resolveSymptoms(ctx, svcs.Catalog, symptomRefs)
				if err != nil {
					return err
				}
				var citation *string
				if cmd.Flags().Changed("citation") {
					citation = &citationFlag
				}

				r, err := svcs.Rules.CreateRule(ctx, strings.ToUpper(code), diseaseID, name, symptomIDs, citation)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created rule %s (id %d) with %d symptom(s).\n", r.Code, r.ID, len(r.SymptomIDs))
				return nil
			})
		},
	}
	cmd.Flags().String("code", "", "Rule code, e.g. R009 (default: next free code)")
	cmd.Flags().String("disease", "", "Disease id or code, e.g. P001")
	cmd.Flags().String("name", "", "Rule name")
	cmd.Flags().StringSlice("symptoms", nil, "Comma separated symptom ids or codes, at least two")
	cmd.Flags().String("citation", "", "Optional source citation")
	_ = cmd.MarkFlagRequired("disease")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("symptoms")
	return cmd
}

func rulesDeleteCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a rule and all of its symptom links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errNotConfirmed
			}
			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				ok, err := svcs.Rules.DeleteRule(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("rule %d: %w", id, rules.ErrNotFound)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %d.\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm the deletion")
	return cmd
}

func rulesUnlinkCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlink LINK_ID",
		Short: "Remove one symptom link from a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid link id %q", args[0])
			}
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errNotConfirmed
			}
			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				ok, err := svcs.Rules.DeleteSymptomLink(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("symptom link %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed symptom link %d.\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm the removal")
	return cmd
}

func rulesNextCodeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "next-code",
		Short: "Print the next free rule code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svcs *app.Services) error {
				code, err := svcs.Rules.NextCode(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
				return nil
			})
		},
	}
}

func symptomCodes(r *rules.RuleDetail) string {
	codes := make([]string, 0, len(r.Symptoms))
	for _, s := range r.Symptoms {
		codes = append(codes, s.Code)
	}
	return strings.Join(codes, ",")
}
