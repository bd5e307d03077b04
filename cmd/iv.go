package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/edp1096/toy-bsim/pkg/analysis"
	"github.com/edp1096/toy-bsim/pkg/util"
)

var (
	ivVgs     []float64
	ivVdsStop float64
	ivVdsStep float64
	ivPlot    string

	ivCmd = &cobra.Command{
		Use:   "iv",
		Short: "Sweep the output characteristics Id(Vds) for a family of gate voltages",
		RunE:  runIV,
	}
)

func init() {
	f := ivCmd.Flags()
	f.Float64SliceVar(&ivVgs, "vgs", []float64{0.6, 0.9, 1.2, 1.5, 1.8}, "gate source voltages (V)")
	f.Float64Var(&ivVdsStop, "vds-stop", 1.8, "last drain source voltage (V)")
	f.Float64Var(&ivVdsStep, "vds-step", 0.05, "drain source voltage step (V)")
	f.StringVar(&ivPlot, "plot", "", "write the curves to this PNG file")
}

// curve is one Id(Vds) trace.
type curve struct {
	vgs float64
	vds []float64
	id  []float64
}

// sweepCurves runs every gate voltage on its own circuit, all instances sharing one model.
func sweepCurves() ([]curve, error) {
	m, err := loadModel()
	if err != nil {
		return nil, err
	}
	pol := polarity(m)

	curves := make([]curve, len(ivVgs))
	var g errgroup.Group
	for i, vgs := range ivVgs {
		g.Go(func() error {
			ckt, _, err := biasCircuit(fmt.Sprintf("iv vgs=%g", vgs), m, vgs, 0, 0)
			if err != nil {
				return err
			}
			defer ckt.Destroy()

			dc := analysis.NewDCSweep([]string{"VD"}, []float64{0}, []float64{pol * ivVdsStop}, []float64{pol * ivVdsStep})
			dc.Tol = cfg.Tolerances
			dc.Counter = counter.Fork()
			if err := dc.Setup(ckt); err != nil {
				return err
			}
			if err := dc.Execute(); err != nil {
				return fmt.Errorf("vgs=%g: %w", vgs, err)
			}

			res := dc.GetResults()
			c := curve{vgs: vgs, vds: make([]float64, len(res["SWEEP1"])), id: make([]float64, len(res["SWEEP1"]))}
			for k, v := range res["SWEEP1"] {
				c.vds[k] = pol * v
				// The source branch current flows out of the drain node
				c.id[k] = -pol * res["I(VD)"][k]
			}
			curves[i] = c
			slog.Debug("curve done", slog.Float64("vgs", vgs), slog.Int("points", len(c.vds)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return curves, nil
}

func runIV(cmd *cobra.Command, args []string) error {
	if ivVdsStep <= 0 || ivVdsStop <= 0 {
		return fmt.Errorf("vds-stop and vds-step must be positive")
	}
	if len(ivVgs) == 0 {
		return fmt.Errorf("no gate voltages")
	}

	curves, err := sweepCurves()
	if err != nil {
		return err
	}
	printCurves(curves)

	if ivPlot != "" {
		if err := plotCurves(curves, ivPlot); err != nil {
			return err
		}
		fmt.Printf("\nPlot written to %s\n", ivPlot)
	}
	return nil
}

func printCurves(curves []curve) {
	fmt.Printf("\nOutput characteristics, %s (L=%s W=%s):\n", modelName,
		util.FormatValueFactor(length, "m"), util.FormatValueFactor(width, "m"))

	var header strings.Builder
	header.WriteString("     Vds    ")
	for _, c := range curves {
		fmt.Fprintf(&header, " Vgs=%-9s", util.FormatValueFactor(c.vgs, "V"))
	}
	fmt.Println(header.String())
	fmt.Println(strings.Repeat("-", header.Len()))

	for k := range curves[0].vds {
		fmt.Printf("%11s ", util.FormatValueFactor(curves[0].vds[k], "V"))
		for _, c := range curves {
			fmt.Printf(" %13s", util.FormatValueFactor(c.id[k], "A"))
		}
		fmt.Println()
	}

	if len(curves) < 2 {
		return
	}
	last := curves[0].vds[len(curves[0].vds)-1]
	fmt.Printf("\nTransconductance at Vds=%s:\n", util.FormatValueFactor(last, "V"))
	for i := 1; i < len(curves); i++ {
		fmt.Printf("  Vgs %g..%g V: %s\n", curves[i-1].vgs, curves[i].vgs, util.FormatValueFactor(gm(curves[i-1], curves[i]), "S"))
	}
}

func plotCurves(curves []curve, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s L=%gum W=%gum", modelName, length*1e6, width*1e6)
	p.X.Label.Text = "Vds (V)"
	p.Y.Label.Text = "Id (mA)"

	var lines []any
	for _, c := range curves {
		pts := make(plotter.XYs, len(c.vds))
		for k := range c.vds {
			pts[k].X = c.vds[k]
			pts[k].Y = c.id[k] * 1e3
		}
		lines = append(lines, fmt.Sprintf("Vgs=%gV", c.vgs), pts)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// gm is the transconductance between two neighbouring gate voltage curves at the last Vds.
func gm(lo, hi curve) float64 {
	n := len(lo.id) - 1
	if n < 0 || hi.vgs == lo.vgs {
		return 0
	}
	return (hi.id[n] - lo.id[n]) / (hi.vgs - lo.vgs)
}
