package main

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/edp1096/toy-bsim/pkg/util"
)

// names returns the sorted result keys with the given prefix, suffix stripped.
func names(results map[string][]float64, prefix, suffix string) []string {
	var out []string
	for name := range results {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			out = append(out, strings.TrimSuffix(name, suffix))
		}
	}
	slices.Sort(out)
	return out
}

func printResults(results map[string][]float64) {
	// AC
	if freqs, isAC := results["FREQ"]; isAC {
		fmt.Printf("\nAC Analysis Results (%d frequency points):\n", len(freqs))
		fmt.Println("Frequency      Node Voltages (Magnitude/Phase)        Branch Currents (Magnitude/Phase)")
		fmt.Println("-----------------------------------------------------------------------------")

		signals := append(names(results, "V(", "_MAG"), names(results, "I(", "_MAG")...)
		for i, freq := range freqs {
			fmt.Printf("%-13s", util.FormatFrequency(freq))
			for _, name := range signals {
				mag, phase := results[name+"_MAG"], results[name+"_PHASE"]
				if mag != nil && phase != nil {
					fmt.Printf("%s  ", util.FormatMagnitudePhase(name, mag[i], phase[i]))
				}
			}
			fmt.Println()
		}
		return
	}

	voltages := names(results, "V(", "")
	currents := names(results, "I(", "")

	// DC Sweep
	if sweep1, isDC := results["SWEEP1"]; isDC {
		fmt.Printf("\nDC Sweep Analysis Results (%d points):\n", len(sweep1))
		fmt.Println("Sweep Values    Node Voltages        Branch Currents")
		fmt.Println("------------------------------------------------")

		sweep2, hasNested := results["SWEEP2"]
		for i := range sweep1 {
			if hasNested {
				fmt.Printf("V1=%-9s V2=%-9s  ",
					util.FormatValueFactor(sweep1[i], "V"),
					util.FormatValueFactor(sweep2[i], "V"))
			} else {
				fmt.Printf("V=%-9s  ", util.FormatValueFactor(sweep1[i], "V"))
			}
			for _, name := range voltages {
				fmt.Printf("%s=%s  ", name, util.FormatValueFactor(results[name][i], "V"))
			}
			for _, name := range currents {
				fmt.Printf("%s=%s  ", name, util.FormatValueFactor(results[name][i], "A"))
			}
			fmt.Println()
		}
		return
	}

	// Operating point
	fmt.Println("\nNode Voltages:")
	for _, name := range voltages {
		fmt.Printf("%s = %s\n", name, util.FormatValueFactor(results[name][0], "V"))
	}
	fmt.Println("\nBranch Currents:")
	for _, name := range currents {
		fmt.Printf("%s = %s\n", name, util.FormatValueFactor(results[name][0], "A"))
	}
}

// printNoise lists the output and input referred noise and the largest contributor per point.
func printNoise(results map[string][]float64) {
	freqs := results["FREQ"]
	fmt.Printf("\nNoise Analysis Results (%d frequency points):\n", len(freqs))
	fmt.Println("Frequency      Output (V/rtHz)  Input (V/rtHz)   Gain       Dominant source")
	fmt.Println("-----------------------------------------------------------------------------")

	var sources []string
	for name := range results {
		if strings.Contains(name, ".") {
			sources = append(sources, name)
		}
	}
	slices.Sort(sources)

	for i, freq := range freqs {
		dominant, most := "", 0.0
		for _, s := range sources {
			if d := results[s][i]; d > most {
				dominant, most = s, d
			}
		}
		share := 0.0
		if out := results["ONOISE"][i]; out > 0 {
			share = 100 * most / (out * out)
		}
		fmt.Printf("%-13s  %s         %s         %s   %s (%.0f%%)\n",
			util.FormatFrequency(freq),
			util.FormatMagnitude(results["ONOISE"][i]),
			util.FormatMagnitude(results["INOISE"][i]),
			util.FormatMagnitude(results["GAIN"][i]),
			dominant, share)
	}
}

// printSourceTotals ranks the band integrated contributions, largest first.
func printSourceTotals(totals map[string]float64, rms float64) {
	sources := slices.SortedFunc(maps.Keys(totals), func(a, b string) int {
		return cmp.Compare(totals[b], totals[a])
	})
	fmt.Println("\nIntegrated output noise by source:")
	for _, s := range sources {
		share := 0.0
		if rms > 0 {
			share = 100 * totals[s] / (rms * rms)
		}
		fmt.Printf("  %-16s %sV rms (%.1f%%)\n", s, util.FormatMagnitude(math.Sqrt(totals[s])), share)
	}
}
