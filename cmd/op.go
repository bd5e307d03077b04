package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edp1096/toy-bsim/pkg/analysis"
	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/device/bsim"
	"github.com/edp1096/toy-bsim/pkg/util"
)

var (
	opVgs, opVds, opVbs float64

	opCmd = &cobra.Command{
		Use:   "op",
		Short: "Solve one bias point and print the pin currents",
		RunE:  runOP,
	}
)

func init() {
	opCmd.Flags().Float64Var(&opVgs, "vgs", 1.2, "gate source voltage (V), sign follows the device type")
	opCmd.Flags().Float64Var(&opVds, "vds", 1.2, "drain source voltage (V), sign follows the device type")
	opCmd.Flags().Float64Var(&opVbs, "vbs", 0, "bulk source voltage (V), sign follows the device type")
}

// biasCircuit is the four terminal test fixture: the source grounded and every other pin
// driven by its own source.
func biasCircuit(name string, m *bsim.Model, vgs, vds, vbs float64) (*circuit.Circuit, *bsim.Instance, error) {
	inst := bsim.NewInstance("M1", []string{"d", "g", "0", "b"}, m)
	if err := inst.SetParams(map[string]float64{"l": length, "w": width}); err != nil {
		return nil, nil, err
	}

	pol := polarity(m)
	ckt := circuit.New(name)
	for _, dev := range []device.Device{
		device.NewDCVoltageSource("VD", []string{"d", "0"}, pol*vds),
		device.NewDCVoltageSource("VG", []string{"g", "0"}, pol*vgs),
		device.NewDCVoltageSource("VB", []string{"b", "0"}, pol*vbs),
		inst,
	} {
		if err := ckt.Add(dev); err != nil {
			return nil, nil, err
		}
	}
	if err := ckt.Setup(temperature()); err != nil {
		return nil, nil, err
	}
	return ckt, inst, nil
}

func runOP(cmd *cobra.Command, args []string) error {
	m, err := loadModel()
	if err != nil {
		return err
	}
	ckt, inst, err := biasCircuit("bias point", m, opVgs, opVds, opVbs)
	if err != nil {
		return err
	}
	defer ckt.Destroy()

	op := analysis.NewOP()
	op.Tol = cfg.Tolerances
	op.Counter = counter
	if err := op.Setup(ckt); err != nil {
		return err
	}
	if err := op.Execute(); err != nil {
		return err
	}
	printResults(op.GetResults())

	pins, err := inst.Adjoint()
	if err != nil {
		return err
	}
	fmt.Println("\nPin currents:")
	fmt.Printf("  D = %s\n", util.FormatValueFactor(pins.D, "A"))
	fmt.Printf("  G = %s\n", util.FormatValueFactor(pins.G, "A"))
	fmt.Printf("  S = %s\n", util.FormatValueFactor(pins.S, "A"))
	fmt.Printf("  B = %s\n", util.FormatValueFactor(pins.B, "A"))
	return nil
}
