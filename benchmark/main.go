// Package main measures how much the response cache speeds up the tally CLI.
// Each command runs against completed periods of a live backend, first with
// the cache disabled and then with SQLite caching, where the first run is
// treated as cold and the rest are averaged as warm. Results go to a CSV file.
//
// Prerequisites:
// - tally binary installed and available in PATH
// - a reachable backend (TALLY_API_URL and TALLY_API_KEY set)
//
// Usage: go run benchmark/main.go [period-count]
//
//	period-count: number of completed weeks to benchmark (default 4)
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Period      string
	Command     string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Periods     []string
	Timeout     time.Duration
	NoCacheRuns int
	CacheRuns   int
	Commands    [][]string
}

func main() {
	count := 4
	if len(os.Args) == 2 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fmt.Printf("Usage: %s [period-count]\n", os.Args[0])
			os.Exit(1)
		}
		count = n
	}

	if _, err := exec.LookPath("tally"); err != nil {
		fmt.Println("Prerequisites check failed: tally binary not found in PATH")
		os.Exit(1)
	}

	periods, err := completedWeeks(count)
	if err != nil {
		fmt.Printf("Failed to list periods: %v\n", err)
		os.Exit(1)
	}

	config := BenchmarkConfig{
		Periods:     periods,
		Timeout:     2 * time.Minute,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Commands: [][]string{
			{"leaderboard"},
			{"sessions"},
			{"usage"},
			{"score", "preview"},
		},
	}

	// Clear the cache using tally cache clear
	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("tally", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(config, results)
}

// completedWeeks asks tally for the last n+1 weekly keys and drops the
// current week, whose responses are never cached.
func completedWeeks(n int) ([]string, error) {
	out, err := exec.Command("tally", "periods", "--count", strconv.Itoa(n+1), "--output", "csv").Output()
	if err != nil {
		return nil, err
	}
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		return nil, err
	}
	var keys []string
	for i, rec := range records {
		if i < 2 || len(rec) < 2 { // header and current week
			continue
		}
		keys = append(keys, rec[1])
	}
	return keys, nil
}

// runBenchmarks executes all benchmark commands across the configured periods
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d periods, %v timeout, no-cache: %d runs, cache: %d runs\n",
		len(config.Periods), config.Timeout, config.NoCacheRuns, config.CacheRuns)

	for _, key := range config.Periods {
		fmt.Printf("Benchmarking %s\n", key)
		for _, command := range config.Commands {
			results = append(results, runBenchmarkSuite(config, key, command))
		}
	}
	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a command
func runBenchmarkSuite(config BenchmarkConfig, key string, command []string) BenchmarkResult {
	name := strings.Join(command, " ")
	fmt.Printf("Running %s for %s\n", name, key)

	// Helper to run a benchmark phase
	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, key, command, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Period:      key,
		Command:     name,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes a tally command multiple times with specified cache backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, key string, command []string, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := append([]string{}, command...)
	args = append(args, "--period", key, "--cache-backend", cacheBackend, "--output", "json", "--output-file", os.DevNull)

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("tally", args...)

		done := make(chan error, 1)
		go func() {
			done <- cmd.Run()
		}()

		select {
		case err := <-done:
			if err == nil {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/tally_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"period", "cmd", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Period, result.Command, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(config BenchmarkConfig, results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, command := range config.Commands {
		name := strings.Join(command, " ")
		fmt.Printf("%s:\n", name)
		for _, result := range results {
			if result.Command == name {
				fmt.Printf("  %-10s: No-cache: %s, Cold: %s, Warm: %s\n", result.Period, result.NoCacheTime, result.ColdTime, result.WarmTime)
			}
		}
	}
	fmt.Printf("Benchmark script completed successfully\n")
}
