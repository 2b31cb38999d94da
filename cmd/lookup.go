package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"ecoroute/internal/emission"
	"ecoroute/internal/helper"
	"ecoroute/internal/planner"
)

func newModesCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the transport modes of the emission table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := c.emissionTable()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(t.Modes()))
			for _, mode := range t.Modes() {
				f, _ := t.Factor(mode)
				rows = append(rows, []string{f.Mode, formatNum(f.KgPerKm), optionalNum(f.CostPerKm), optionalNum(f.SpeedKmh)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table: %s\n", t.Name())
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Mode", "kg CO2/km", "INR/km", "km/h"}, rows))
			return nil
		},
	}
}

func newCalcCommand(c *cli) *cobra.Command {
	var mode string
	var distance float64
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate the CO2 emitted by a trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := c.emissionTable()
			if err != nil {
				return err
			}
			res, err := t.Calculate(mode, distance)
			if err != nil {
				return fmt.Errorf("could not calculate emissions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Transport mode, e.g. Metro")
	cmd.Flags().Float64VarP(&distance, "distance", "d", 0, "Distance in km")
	_ = cmd.MarkFlagRequired("mode")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}

func newCompareCommand(c *cli) *cobra.Command {
	var distance float64
	var priority string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare every transport mode for a trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := c.emissionTable()
			if err != nil {
				return err
			}
			p, err := emission.ParsePriority(priority)
			if err != nil {
				return err
			}
			routes, err := t.Compare(distance, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRoutes(routes))
			if len(routes) > 1 {
				printSavings(cmd, routes[0], routes[len(routes)-1])
			}
			return nil
		},
	}
	cmd.Flags().Float64VarP(&distance, "distance", "d", 0, "Distance in km")
	cmd.Flags().StringVarP(&priority, "priority", "p", "eco", "Sort by eco, cost or fast")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}

func newPlanCommand(c *cli) *cobra.Command {
	var journey planner.Journey
	var priority string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compare modes for a journey and ask the model for a recommendation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := c.emissionTable()
			if err != nil {
				return err
			}
			if journey.Priority, err = emission.ParsePriority(priority); err != nil {
				return err
			}
			llm, err := c.llm()
			if err != nil {
				return err
			}

			plan, err := planner.New(t, llm).Recommend(cmd.Context(), journey)
			if err != nil {
				return err
			}
			if asJSON {
				helper.PrettyPrint(plan)
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headingStyle.Render("Recommendation"))
			fmt.Fprintln(out, plan.Recommendation)
			if plan.RecommendationErr != nil {
				fmt.Fprintln(out, errorStyle.Render("Error: "+plan.RecommendationErr.Error()))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderRoutes(plan.Routes))
			if len(plan.Routes) > 1 {
				printSavings(cmd, plan.Routes[0], plan.Routes[len(plan.Routes)-1])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&journey.Origin, "from", "", "Origin")
	cmd.Flags().StringVar(&journey.Destination, "to", "", "Destination")
	cmd.Flags().Float64VarP(&journey.DistanceKm, "distance", "d", 0, "Distance in km")
	cmd.Flags().StringVarP(&priority, "priority", "p", "eco", "Priority: eco, cost or fast")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("34"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		String()
}

func renderRoutes(routes []emission.RouteMetrics) string {
	rows := make([][]string, len(routes))
	for i, r := range routes {
		rows[i] = []string{
			r.Mode,
			formatNum(r.EmissionsKg),
			optionalNum(r.Cost),
			optionalNum(r.Minutes),
			formatNum(r.SustainabilityScore) + "/100",
		}
	}
	return renderTable([]string{"Mode", "CO2 (kg)", "Cost (INR)", "Time (min)", "Score"}, rows)
}

func printSavings(cmd *cobra.Command, best, worst emission.RouteMetrics) {
	s := emission.Impact(best, worst)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s instead of %s saves %.2f kg CO2 (%.2f kg a year, about %d trees)\n",
		best.Mode, worst.Mode, s.CO2SavedKg, s.YearlyCO2SavedKg, s.TreesEquivalent)
	if s.CostSaved != nil {
		fmt.Fprintf(out, "and INR %.2f per trip\n", *s.CostSaved)
	}
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalNum(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatNum(*v)
}
