package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/edp1096/toy-bsim/pkg/analysis"
	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/device/bsim"
	"github.com/edp1096/toy-bsim/pkg/util"
)

var (
	ampVdd    float64
	ampVgs    float64
	ampLoad   float64
	ampCload  float64
	ampFStart float64
	ampFStop  float64
	ampPoints int
	ampNoise  bool

	ampCmd = &cobra.Command{
		Use:   "amp",
		Short: "Small-signal gain and noise of a resistively loaded common source stage",
		RunE:  runAmp,
	}
)

func init() {
	f := ampCmd.Flags()
	f.Float64Var(&ampVdd, "vdd", 1.8, "supply voltage (V)")
	f.Float64Var(&ampVgs, "vgs", 0.9, "gate bias (V)")
	f.Float64Var(&ampLoad, "rload", 10e3, "drain load resistance (Ohm)")
	f.Float64Var(&ampCload, "cload", 100e-15, "output load capacitance (F)")
	f.Float64Var(&ampFStart, "fstart", 1e3, "first frequency (Hz)")
	f.Float64Var(&ampFStop, "fstop", 10e9, "last frequency (Hz)")
	f.IntVar(&ampPoints, "points", 3, "points per decade")
	f.BoolVar(&ampNoise, "noise", false, "also run the output noise analysis")
}

// ampCircuit is VDD - RL - drain, gate biased at vgs with a unit AC excitation.
func ampCircuit(m *bsim.Model) (*circuit.Circuit, error) {
	inst := bsim.NewInstance("M1", []string{"out", "in", "0", "0"}, m)
	if err := inst.SetParams(map[string]float64{"l": length, "w": width}); err != nil {
		return nil, err
	}

	pol := polarity(m)
	ckt := circuit.New("common source")
	for _, dev := range []device.Device{
		device.NewDCVoltageSource("VDD", []string{"vdd", "0"}, pol*ampVdd),
		device.NewACVoltageSource("VIN", []string{"in", "0"}, pol*ampVgs, 1, 0),
		device.NewResistor("RL", []string{"vdd", "out"}, ampLoad),
		device.NewCapacitor("CL", []string{"out", "0"}, ampCload),
		inst,
	} {
		if err := ckt.Add(dev); err != nil {
			return nil, err
		}
	}
	if err := ckt.Setup(temperature()); err != nil {
		return nil, err
	}
	return ckt, nil
}

func decades() int {
	return max(1, int(math.Ceil(math.Log10(ampFStop/ampFStart)*float64(ampPoints)))+1)
}

func runAmp(cmd *cobra.Command, args []string) error {
	m, err := loadModel()
	if err != nil {
		return err
	}
	ckt, err := ampCircuit(m)
	if err != nil {
		return err
	}
	defer ckt.Destroy()

	ac := analysis.NewAC(ampFStart, ampFStop, decades(), "DEC")
	ac.Tol = cfg.Tolerances
	ac.Counter = counter
	if err := ac.Setup(ckt); err != nil {
		return err
	}
	if err := ac.Execute(); err != nil {
		return err
	}
	res := ac.GetResults()
	printResults(map[string][]float64{
		"FREQ":         res["FREQ"],
		"V(out)_MAG":   res["V(out)_MAG"],
		"V(out)_PHASE": res["V(out)_PHASE"],
	})

	if !ampNoise {
		return nil
	}

	nz := analysis.NewNoise("out", "0", "VIN", ampFStart, ampFStop, decades(), "DEC")
	nz.Tol = cfg.Tolerances
	nz.Counter = counter
	if err := nz.Setup(ckt); err != nil {
		return err
	}
	if err := nz.Execute(); err != nil {
		return err
	}
	printNoise(nz.GetResults())
	fmt.Printf("\nTotal output noise: %sV rms\n", util.FormatMagnitude(nz.TotalOutput()))
	fmt.Printf("Total input noise:  %sV rms\n", util.FormatMagnitude(nz.TotalInput()))
	printSourceTotals(nz.SourceTotals(), nz.TotalOutput())
	return nil
}
