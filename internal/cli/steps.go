package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/stagerun/internal/steps"
)

// NewStepsCmd создаёт команду со списком типов шагов.
func NewStepsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List registered step types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			types := steps.DefaultRegistry(nil).Types()

			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t}
			}

			out.Print([]string{"TYPE"}, rows, types)
			return nil
		},
	}
}

// NewValidateCmd создаёт команду проверки файла плана без выполнения.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate PLAN_FILE",
		Short: "Validate a plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			plan, err := steps.LoadPlan(args[0])
			if err != nil {
				return err
			}
			if err := steps.Validate(plan, steps.DefaultRegistry(nil)); err != nil {
				return err
			}

			rows := make([][]string, len(plan.Steps))
			for i, s := range plan.Steps {
				rows[i] = []string{strconv.Itoa(i), s.ID, s.Type}
			}
			out.Print([]string{"STEP", "ID", "TYPE"}, rows, plan)
			out.Success("Plan " + plan.Name + " is valid")
			return nil
		},
	}
}
