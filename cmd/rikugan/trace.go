package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rikugan-dev/rikugan/pkg/config"
	"github.com/rikugan-dev/rikugan/pkg/export"
	"github.com/rikugan-dev/rikugan/pkg/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect recorded inference turns",
}

var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded turns, newest first",
	RunE:  runTraceList,
}

var traceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded turns as CSV",
	RunE:  runTraceExport,
}

var tracePlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render mean block heat across turns as SVG",
	RunE:  runTracePlot,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(traceListCmd)
	traceCmd.AddCommand(traceExportCmd)
	traceCmd.AddCommand(tracePlotCmd)

	traceListCmd.Flags().Int("limit", 20, "maximum turns to list (0 = all)")
	traceExportCmd.Flags().String("out", "", "output file (default: stdout)")
	traceExportCmd.Flags().Bool("prompts", false, "include the prompt column")
	tracePlotCmd.Flags().String("out", "heat.svg", "output SVG file")
}

func openTraceDB() (*trace.Recorder, error) {
	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if cfg.Trace.Path == "" {
		return nil, fmt.Errorf("no trace database configured; set trace.path in %s", resolveConfigPath())
	}
	return trace.Open(cfg.Trace.Path)
}

func runTraceList(cmd *cobra.Command, args []string) error {
	recorder, err := openTraceDB()
	if err != nil {
		return err
	}
	defer recorder.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	turns, err := recorder.List(limit)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Println("No recorded turns.")
		return nil
	}

	fmt.Printf("%-36s  %-18s  %6s  %7s  %9s  %s\n",
		"ID", "MODEL", "LAYERS", "SEQ", "HEAT", "STARTED")
	for _, t := range turns {
		fmt.Printf("%-36s  %-18s  %6d  %7d  %9.4f  %s\n",
			t.ID, t.ModelID, t.NumLayers, t.SeqLen, t.MeanBlockHeat,
			t.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runTraceExport(cmd *cobra.Command, args []string) error {
	recorder, err := openTraceDB()
	if err != nil {
		return err
	}
	defer recorder.Close()

	cfg := trace.DefaultCSVConfig()
	cfg.IncludePrompt, _ = cmd.Flags().GetBool("prompts")

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return recorder.ExportCSV(out, cfg)
}

func runTracePlot(cmd *cobra.Command, args []string) error {
	recorder, err := openTraceDB()
	if err != nil {
		return err
	}
	defer recorder.Close()

	turns, err := recorder.List(0)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Println("No recorded turns to plot.")
		return nil
	}

	path, _ := cmd.Flags().GetString("out")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := export.HeatPlot(f, turns, nil); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d turns)\n", path, len(turns))
	return nil
}
