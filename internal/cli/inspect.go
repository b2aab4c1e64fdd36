package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"slimforge/internal/checkpoint"
	"slimforge/internal/params"
)

var inspectThreshold float64

var inspectCmd = &cobra.Command{
	Use:   "inspect <checkpoint>",
	Short: "Print the tensors stored in a checkpoint",
	Long: `Lists every tensor of a checkpoint with its shape and trainability,
followed by the model size and, for the bn1/bn2 channel scales, how many
channels fall below --threshold and could be pruned.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().Float64VarP(&inspectThreshold, "threshold", "t", 1e-2, "channel scale magnitude considered prunable")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ck, err := checkpoint.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := params.PrintTable(out, ck.State, ck.Trainable); err != nil {
		return err
	}

	// Rebuild tagged parameters from the stored names.
	var ps params.List
	for _, name := range ck.State.Keys() {
		t := ck.State[name]
		p := params.New(name, t.Shape, ck.Trainable[name])
		copy(p.Data, t.Data)
		ps = append(ps, p)
	}

	fmt.Fprintf(out, "-----Model Size: %.5fM\n", params.Millions(params.Count(ps)))
	fmt.Fprintf(out, "epoch: %d  accuracy: %.4f\n", ck.Epoch, ck.Accuracy)

	for _, p := range params.SelectSlim(ps) {
		prunable := 0
		for _, v := range p.Data {
			if math.Abs(v) < inspectThreshold {
				prunable++
			}
		}
		fmt.Fprintf(out, "%s: %d/%d channels below %g (L1 %.6f)\n",
			p.Name, prunable, len(p.Data), inspectThreshold, params.L1Penalty([]*params.Param{p}))
	}
	return nil
}
