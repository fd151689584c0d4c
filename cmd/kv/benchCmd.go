package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dkvs/cmd/util"
	"github.com/ValentinKolb/dkvs/rpc/executor"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	benchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Load test a store through the client executor and connection pool",
		RunE:    runBench,
		PreRunE: processBenchConfig,
	}
	benchKeyPrefix   = "__bench"
	benchRequests    = 10000
	benchValueSize   = 100
	benchKeySpread   = 100
	benchSkip        = make([]string, 0)
	benchPrintMetric = false
)

// benchResult holds the measurements of one operation
type benchResult struct {
	name     string
	requests int
	errors   int
	elapsed  time.Duration
	latency  gometrics.Timer
}

func (r benchResult) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.requests) / r.elapsed.Seconds()
}

func init() {
	key := "requests"
	benchCmd.Flags().Int(key, 10000, util.WrapString("Number of requests per operation"))
	key = "value-size"
	benchCmd.Flags().Int(key, 100, util.WrapString("Size of the values written by set (in bytes)"))
	key = "keys"
	benchCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use"))
	key = "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Operations to skip (comma separated - e.g. set,get,has,delete)"))
	key = "metrics"
	benchCmd.Flags().Bool(key, false, util.WrapString("Print pool and executor metrics in Prometheus format after the run"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchRequests = viper.GetInt("requests")
	benchValueSize = viper.GetInt("value-size")
	benchKeySpread = viper.GetInt("keys")
	benchPrintMetric = viper.GetBool("metrics")
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	if benchRequests <= 0 || benchKeySpread <= 0 || benchValueSize < 0 {
		return fmt.Errorf("requests and keys must be greater than 0, value-size must not be negative")
	}
	return nil
}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	value := make([]byte, benchValueSize)

	fmt.Printf("Benchmarking %s\n", rpcStore)
	fmt.Println(factory.Config().String())

	ops := []struct {
		name string
		run  func(ctx context.Context, key string) error
	}{
		{"set", func(ctx context.Context, key string) error {
			return rpcStore.Set(ctx, key, value)
		}},
		{"get", func(ctx context.Context, key string) error {
			_, _, err := rpcStore.Get(ctx, key)
			return err
		}},
		{"has", func(ctx context.Context, key string) error {
			_, err := rpcStore.Has(ctx, key)
			return err
		}},
		{"delete", func(ctx context.Context, key string) error {
			_, err := rpcStore.Delete(ctx, key)
			return err
		}},
	}

	var results []benchResult
	for _, op := range ops {
		if slices.Contains(benchSkip, op.name) {
			continue
		}
		r, err := benchOperation(ctx, op.name, op.run)
		if err != nil {
			return err
		}
		printResult(r)
		results = append(results, r)
	}

	stats := factory.Executor().Stats()
	fmt.Printf("\nexecutor: %d caller runs, pool: %+v\n", stats.CallerRuns, factory.Pool().Stats())

	if benchPrintMetric {
		fmt.Println()
		factory.WritePrometheus(os.Stdout)
	}

	if path := viper.GetString("csv"); path != "" {
		if err := saveResultsToCSV(path, results); err != nil {
			return err
		}
		fmt.Printf("results saved to %s\n", path)
	}
	return nil
}

// benchOperation submits benchRequests calls of run to the shared executor and waits for all of them
func benchOperation(ctx context.Context, name string, run func(ctx context.Context, key string) error) (benchResult, error) {
	latency := gometrics.NewTimer()
	r := benchResult{name: name, requests: benchRequests, latency: latency}
	futures := make([]*executor.Future, 0, benchRequests)

	start := time.Now()
	for i := 0; i < benchRequests; i++ {
		key := benchKeyPrefix + "-" + strconv.Itoa(i%benchKeySpread)
		submitted := time.Now()
		f, err := factory.Executor().Submit(func() error {
			defer latency.UpdateSince(submitted)
			return run(ctx, key)
		})
		if err != nil {
			return r, err
		}
		futures = append(futures, f)
	}

	var firstErr error
	for _, f := range futures {
		if err := f.Wait(ctx); err != nil {
			r.errors++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.elapsed = time.Since(start)

	if firstErr != nil {
		fmt.Printf("(%s) - %d errors, first: %v\n", name, r.errors, firstErr)
	}
	return r, nil
}

func printResult(r benchResult) {
	p := r.latency.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-8s %8d req %6d err %12.0f op/s   mean %-12s p50 %-12s p99 %s\n",
		r.name,
		r.requests,
		r.errors,
		r.opsPerSec(),
		time.Duration(r.latency.Mean()),
		time.Duration(p[0]),
		time.Duration(p[1]),
	)
}

func saveResultsToCSV(path string, results []benchResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := factory.Config()
	header := []string{
		"Test", "Requests", "Errors", "OpsPerSec", "MeanNs", "P50Ns", "P99Ns",
		"BootstrapURLs", "CoreThreads", "MaxThreads", "MaxQueuedRequests",
		"MaxConnectionsPerNode", "MaxTotalConnections", "SocketTimeoutMs",
		"Serializer", "ValueSize", "Keys",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		p := r.latency.Percentiles([]float64{0.5, 0.99})
		row := []string{
			r.name,
			strconv.Itoa(r.requests),
			strconv.Itoa(r.errors),
			fmt.Sprintf("%.0f", r.opsPerSec()),
			fmt.Sprintf("%.0f", r.latency.Mean()),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			strings.Join(config.BootstrapURLs(), ";"),
			strconv.Itoa(config.CoreThreads()),
			strconv.Itoa(config.MaxThreads()),
			strconv.Itoa(config.MaxQueuedRequests()),
			strconv.Itoa(config.MaxConnectionsPerNode()),
			strconv.Itoa(config.MaxTotalConnections()),
			strconv.FormatInt(config.SocketTimeout().Milliseconds(), 10),
			viper.GetString("serializer"),
			strconv.Itoa(benchValueSize),
			strconv.Itoa(benchKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.name, err)
		}
	}

	return nil
}
