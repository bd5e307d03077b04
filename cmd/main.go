package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/config"
	"github.com/edp1096/toy-bsim/pkg/device/bsim"
	"github.com/edp1096/toy-bsim/pkg/metrics"
)

var (
	configPath  string
	logLevel    string
	showMetrics bool

	modelName string
	modelType string
	length    float64
	width     float64

	cfg      config.Config
	registry = prometheus.NewRegistry()
	counter  = metrics.NewPromCounter(registry)

	rootCmd = &cobra.Command{
		Use:           "bsim",
		Short:         "Evaluate BSIM MOSFET model cards in small test circuits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("log level %q: %w", logLevel, err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			var err error
			cfg, err = config.Load(configPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if showMetrics {
				printMetrics()
			}
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML file with tolerances and model cards")
	pf.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	pf.BoolVar(&showMetrics, "metrics", false, "print non-convergence counters after the run")
	pf.StringVarP(&modelName, "model", "m", "nch", "model card name")
	pf.StringVarP(&modelType, "type", "t", "nmos", "device type when the model card is not in the config")
	pf.Float64Var(&length, "l", 1e-6, "channel length (m)")
	pf.Float64Var(&width, "w", 10e-6, "channel width (m)")

	rootCmd.AddCommand(opCmd, ivCmd, ampCmd)
}

// loadModel builds the model named by --model from the config, or a default one of --type.
func loadModel() (*bsim.Model, error) {
	card, ok := cfg.Model(modelName)
	if !ok {
		card = config.ModelCard{Name: modelName, Type: strings.ToLower(modelType)}
		slog.Info("model card not found, using defaults", slog.String("model", modelName), slog.String("type", card.Type))
	}

	typ := bsim.NMOS
	switch card.Type {
	case "nmos":
	case "pmos":
		typ = bsim.PMOS
	default:
		return nil, fmt.Errorf("model %s: unknown type %q", card.Name, card.Type)
	}

	m := bsim.NewModel(card.Name, typ)
	if err := m.SetModelParameters(card.Params); err != nil {
		return nil, fmt.Errorf("model %s: %w", card.Name, err)
	}
	return m, nil
}

// polarity is +1 for NMOS and -1 for PMOS, applied to every bias the commands take.
func polarity(m *bsim.Model) float64 { return float64(m.Type) }

func temperature() float64 { return cfg.Temperature + consts.KELVIN }

func printMetrics() {
	families, err := registry.Gather()
	if err != nil {
		slog.Error("gather metrics", slog.String("error", err.Error()))
		return
	}
	fmt.Println("\nNon-convergence signals:")
	for _, f := range families {
		for _, m := range f.GetMetric() {
			source := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == "source" {
					source = l.GetValue()
				}
			}
			fmt.Printf("  %-10s %6.0f\n", source, m.GetCounter().GetValue())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
