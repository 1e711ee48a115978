package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/leadflow/schema"
)

var recordsCmd = &cobra.Command{
	Use:   "records [flow]",
	Short: "List the reconciled records of a flow",
	Long: `Prints the deduplicated records persisted for a flow as JSON.
Flows: student_lead, workshop_lead, feedback_entry. Without an argument all
persistable flows are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		flows := []schema.Flow{schema.StudentLead, schema.WorkshopLead, schema.FeedbackEntry}
		if len(args) == 1 {
			flow, err := schema.ParseFlow(args[0])
			if err != nil {
				return fmt.Errorf("unknown flow %q", args[0])
			}
			flows = []schema.Flow{flow}
		}

		out := map[string]any{}
		for _, flow := range flows {
			records, err := a.flow.ListRecords(cmd.Context(), flow)
			if err != nil {
				return err
			}
			out[flow.String()] = records
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
}
