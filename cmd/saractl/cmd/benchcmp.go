package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// trackedBenchmarks are the hot paths guarded against regressions.
var trackedBenchmarks = map[string][]string{
	"BenchmarkValidateToken":              {"ns/op", "allocs/op"},
	"BenchmarkValidateTokenGuardMismatch": {"ns/op"},
	"BenchmarkIssueToken":                 {"ns/op"},
}

var benchThreshold float64

// benchSamples maps benchmark name to unit to observed values.
type benchSamples map[string]map[string][]float64

var benchcmpCmd = &cobra.Command{
	Use:   "benchcmp <baseline> <candidate>",
	Short: "Fail when tracked benchmarks regress past a threshold",
	Long: `Compares two "go test -bench" outputs by per-benchmark median and fails
when a tracked metric of the candidate exceeds the baseline by more than
--threshold (0.30 means +30%).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchThreshold < 0 {
			return fmt.Errorf("--threshold must be >= 0")
		}
		baseline, err := readBenchFile(args[0])
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		candidate, err := readBenchFile(args[1])
		if err != nil {
			return fmt.Errorf("candidate: %w", err)
		}
		failures := compareBench(cmd.OutOrStdout(), baseline, candidate, benchThreshold)
		if len(failures) > 0 {
			return fmt.Errorf("performance regression:\n  - %s", strings.Join(failures, "\n  - "))
		}
		return nil
	},
}

func compareBench(w io.Writer, baseline, candidate benchSamples, threshold float64) []string {
	names := make([]string, 0, len(trackedBenchmarks))
	for name := range trackedBenchmarks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	fmt.Fprintln(w, "benchmark metric baseline candidate delta")
	for _, name := range names {
		for _, unit := range trackedBenchmarks[name] {
			base, cand := median(baseline[name][unit]), median(candidate[name][unit])
			if base <= 0 || cand <= 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}
			delta := (cand - base) / base
			fmt.Fprintf(w, "%s %s %.3f %.3f %+0.2f%%\n", name, unit, base, cand, delta*100)
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, delta*100, threshold*100))
			}
		}
	}
	return failures
}

func readBenchFile(path string) (benchSamples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBench(f)
}

func parseBench(r io.Reader) (benchSamples, error) {
	samples := benchSamples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := trimProcs(fields[0])
		if _, ok := trackedBenchmarks[name]; !ok {
			continue
		}
		if samples[name] == nil {
			samples[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], v)
		}
	}
	return samples, scanner.Err()
}

// trimProcs drops the -GOMAXPROCS suffix go test appends.
func trimProcs(name string) string {
	if i := strings.LastIndexByte(name, '-'); i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			return name[:i]
		}
	}
	return name
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func init() {
	benchcmpCmd.Flags().Float64Var(&benchThreshold, "threshold", 0.30, "maximum allowed regression ratio")
	rootCmd.AddCommand(benchcmpCmd)
}
