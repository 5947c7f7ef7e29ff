package tl

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dFeed/cmd/util"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dFeed servers",
		Long:    "Runs a fixed number of operations per benchmark against the shard. Benchmark timelines are prefixed with __perf and are not cleaned up.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfUserPrefix  = "__perf"
	perfNumThreads  = 10
	perfOps         = 10000
	perfUsers       = 100
	perfFanoutWidth = 100
	perfSkip        = make([]string, 0)
)

// nextID hands out increasing status ids so every push is new
var nextID atomic.Uint64

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. push,query)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of operations per benchmark"))
	key = "users"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different timelines to use for the tests"))
	key = "fanout-width"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("Number of timelines written by one push-many operation"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfOps = max(viper.GetInt("ops"), 1)
	perfUsers = max(viper.GetInt("users"), 1)
	perfFanoutWidth = max(viper.GetInt("fanout-width"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark is one named workload, op is called with the index of the operation
type benchmark struct {
	name  string
	setup func() error
	op    func(i int) error
}

// result holds the measurements of one benchmark
type result struct {
	timer   metrics.Timer
	errors  metrics.Counter
	elapsed time.Duration
	skipped bool
}

func (r result) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.timer.Count()) / r.elapsed.Seconds()
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dFeed servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Ops: %d, Users: %d\n", perfNumThreads, perfOps, perfUsers)
	fmt.Println()

	nextID.Store(uint64(time.Now().UnixMicro()))

	users := makeUsers("push", perfUsers)
	readUsers := makeUsers("read", perfUsers)

	// page sizes returned by the query benchmarks
	pageSizes := metrics.NewHistogram(metrics.NewUniformSample(1028))

	benchmarks := []benchmark{
		{
			name: "push",
			op: func(i int) error {
				return rpcStore.Push(users[i%len(users)], nextID.Add(1))
			},
		},
		{
			name: "push-many",
			op: func(i int) error {
				start := (i * perfFanoutWidth) % len(users)
				recipients := make([]string, 0, perfFanoutWidth)
				for j := 0; j < perfFanoutWidth; j++ {
					recipients = append(recipients, users[(start+j)%len(users)])
				}
				return rpcStore.PushMany(recipients, nextID.Add(1))
			},
		},
		{
			name:  "query",
			setup: func() error { return seed(readUsers) },
			op: func(i int) error {
				ids, err := rpcStore.Query(readUsers[i%len(readUsers)], timeline.QueryParams{})
				pageSizes.Update(int64(len(ids)))
				return err
			},
		},
		{
			name:  "query-max-id",
			setup: func() error { return seed(readUsers) },
			op: func(i int) error {
				user := readUsers[i%len(readUsers)]
				first, err := rpcStore.Query(user, timeline.QueryParams{Limit: timeline.MaxLimit})
				if err != nil || len(first) == 0 {
					return err
				}
				ids, err := rpcStore.Query(user, timeline.QueryParams{Limit: timeline.MaxLimit}.Max(first[len(first)-1]))
				pageSizes.Update(int64(len(ids)))
				return err
			},
		},
		{
			name: "len",
			op: func(i int) error {
				_, err := rpcStore.Len(readUsers[i%len(readUsers)])
				return err
			},
		},
		{
			name: "mixed",
			op: func(i int) error {
				user := users[i%len(users)]
				var err error
				switch i % 4 {
				case 0: // push
					err = rpcStore.Push(user, nextID.Add(1))
				case 1: // query
					_, err = rpcStore.Query(user, timeline.QueryParams{})
				case 2: // len
					_, err = rpcStore.Len(user)
				case 3: // remove (usually not present)
					err = rpcStore.Remove(user, uint64(i))
				}
				return err
			},
		},
	}

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	results := make(map[string]result)

	for _, b := range benchmarks {
		r := runBenchmark(registry, b)
		results[b.name] = r
		printResult(b.name, r)
	}

	if pageSizes.Count() > 0 {
		fmt.Printf("\nquery page size: mean=%.1f min=%d max=%d\n", pageSizes.Mean(), pageSizes.Min(), pageSizes.Max())
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runBenchmark runs perfOps operations of b spread over perfNumThreads goroutines
func runBenchmark(registry metrics.Registry, b benchmark) result {
	if shouldSkip(b.name) {
		return result{skipped: true}
	}

	if b.setup != nil {
		if err := b.setup(); err != nil {
			log.Printf("(%s) - setup failed: %v\n", b.name, err)
			return result{skipped: true}
		}
	}

	r := result{
		timer:  metrics.GetOrRegisterTimer(b.name+".latency", registry),
		errors: metrics.GetOrRegisterCounter(b.name+".errors", registry),
	}

	var next atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= perfOps {
					return
				}
				opStart := time.Now()
				err := b.op(i)
				r.timer.UpdateSince(opStart)
				if err != nil {
					r.errors.Inc(1)
					log.Printf("(%s) - operation failed: %v\n", b.name, err)
				}
			}
		}()
	}
	wg.Wait()
	r.elapsed = time.Since(start)

	return r
}

// seed fills every read timeline with MaxLimit*2 ids
func seed(users []string) error {
	for i := 0; i < timeline.MaxLimit*2; i++ {
		if err := rpcStore.PushMany(users, nextID.Add(1)); err != nil {
			return err
		}
	}
	return nil
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// makeUsers creates the timeline names used by a benchmark
func makeUsers(prefix string, n int) []string {
	users := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("%s-%s-%d", perfUserPrefix, prefix, i)
	}
	return users
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, r result) {
	if r.skipped {
		fmt.Printf("%-16sskipped\n", test)
		return
	}

	ps := r.timer.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-16s%8.0f ops/sec\tmean %s\tp50 %s\tp99 %s\terrors %d\n",
		test,
		r.opsPerSec(),
		time.Duration(r.timer.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		r.errors.Count(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]result) error {
	config := util.GetClientConfig()

	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Ops", "OpsPerSec", "MeanNs", "P50Ns", "P99Ns", "Errors", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport", "Threads", "Users",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, test := range names {
		r := results[test]
		row := []string{test, "0", "0", "0", "0", "0", "0", "true"}
		if !r.skipped {
			ps := r.timer.Percentiles([]float64{0.5, 0.99})
			row = []string{
				test,
				strconv.FormatInt(r.timer.Count(), 10),
				fmt.Sprintf("%.0f", r.opsPerSec()),
				fmt.Sprintf("%.0f", r.timer.Mean()),
				fmt.Sprintf("%.0f", ps[0]),
				fmt.Sprintf("%.0f", ps[1]),
				strconv.FormatInt(r.errors.Count(), 10),
				"false",
			}
		}
		row = append(row,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfUsers),
		)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
