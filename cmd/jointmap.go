package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/golems/hubo-ach-sim/bridge"
)

// mapCmd prints how physical joints pair with the model's DOFs
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Print the joint correspondence for a model",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if cmd.Flags().Changed("model") {
			cfg.Model.File = modelFile
		}
		if cmd.Flags().Changed("joint-table") {
			cfg.Model.JointTable = jointTable
		}
		catalog, err := bridge.LoadCatalog(cfg.Model.JointTable)
		if err != nil {
			logrus.Fatalf("Could not load joint catalog: %v", err)
		}
		world, err := buildWorld(&cfg)
		if err != nil {
			logrus.Fatalf("Could not load model: %v", err)
		}
		skel, err := bridge.FindSkeleton(world, cfg.Model.Skeletons)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		dofs := bridge.Dofs(skel)
		corr, err := bridge.BuildCorrespondence(catalog.Joints[:], dofs, bridge.HuboAliases)
		if err != nil {
			logrus.Fatalf("Could not map %s: %v", skel.Name(), err)
		}
		printJointMap(os.Stdout, catalog, dofs, corr)
	},
}

// printJointMap writes one row per named physical joint followed by the
// model DOFs nothing maps to.
func printJointMap(w io.Writer, catalog *bridge.Catalog, dofs []bridge.DofDescriptor, corr *bridge.Correspondence) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tJOINT\tACTIVE\tDOF\tNAME")
	for p := range catalog.Joints {
		j := &catalog.Joints[p]
		if j.Name == "" {
			continue
		}
		dof, name := "-", "-"
		if v, ok := corr.Virtual(p); ok {
			dof, name = fmt.Sprint(v), dofs[v].Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%v\t%s\t%s\n", p, j.Name, j.Active, dof, name)
	}
	tw.Flush()

	var unmatched []string
	for v := range dofs {
		if _, ok := corr.Physical(v); !ok {
			unmatched = append(unmatched, dofs[v].Name)
		}
	}
	fmt.Fprintf(w, "\n%d of %d joints mapped; model DOFs without a joint: %v\n", corr.Len(), bridge.JointCount, unmatched)
}

func init() {
	mapCmd.Flags().StringVar(&modelFile, "model", "", "Model file (YAML); empty loads the built-in Hubo+")
	mapCmd.Flags().StringVar(&jointTable, "joint-table", "", "Joint table overriding the default catalog")

	rootCmd.AddCommand(mapCmd)
}
