package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pricedb-harness/internal/config"
	"pricedb-harness/internal/contracts"
	"pricedb-harness/internal/executor"
	"pricedb-harness/internal/logger"
	"pricedb-harness/internal/reporter"
	"pricedb-harness/internal/suite"
	"pricedb-harness/internal/triage"
	"pricedb-harness/internal/types"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	timeout := flag.Int("timeout", 900, "Overall run timeout in seconds")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runLog, err := logger.NewLogger(cfg.Reporting.LogDir)
	if err != nil {
		log.Fatalf("Failed to create run log: %v", err)
	}
	defer runLog.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	// Optionally merge contracts from a live OpenAPI document. Import
	// failure is not fatal; the static tables keep the run covered.
	var extra []types.EndpointContract
	if cfg.OpenAPI.Enabled {
		importer := contracts.NewImporter(cfg.Targets.APIBaseURL, nil)
		imported, err := importer.Import(cfg.OpenAPI.DocURL)
		if err != nil {
			fmt.Printf("OpenAPI import skipped: %v\n", err)
			runLog.Printf("openapi import failed: %v", err)
		} else {
			fmt.Printf("Imported %d contracts from OpenAPI document\n", len(imported))
			extra = imported
		}
	}

	checks := suite.New(cfg).Checks(extra)
	fmt.Printf("Running %d checks against %s\n", len(checks), cfg.Targets.APIBaseURL)

	runner := executor.NewRunner(executor.Config{
		MaxWorkers:     cfg.Suite.MaxWorkers,
		DefaultTimeout: time.Duration(cfg.Suite.HTTPTimeout) * time.Second * 2,
	})
	results := runner.Run(ctx, checks)

	for _, result := range results {
		runLog.LogCheck(result.Name, result.Verdict, result.Duration)
		for _, p := range result.Probes {
			runLog.LogProbe(p)
		}
	}

	rep := reporter.NewReporter(reporter.Config{
		OutputDir: cfg.Reporting.OutputDir,
		Detailed:  cfg.Reporting.Detailed,
	})
	report := rep.Build(results)

	if cfg.Triage.APIKey != "" {
		reviewable := reporter.ReviewableProbes(results)
		if len(reviewable) > 0 {
			notes, err := triage.NewClient(triage.Config{
				APIKey:      cfg.Triage.APIKey,
				Model:       cfg.Triage.Model,
				Temperature: cfg.Triage.Temperature,
				MaxTokens:   cfg.Triage.MaxTokens,
			}, runLog).Summarize(ctx, reviewable)
			if err != nil {
				fmt.Printf("Triage skipped: %v\n", err)
			} else {
				report.TriageNotes = notes
			}
		}
	}

	path, err := rep.Write(report)
	if err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	fmt.Printf("Checks: %d total, %d passed, %d failed, %d inconclusive\n",
		report.TotalChecks, report.Passed, report.Failed, report.Inconclusive)
	for class, count := range report.Classifications {
		fmt.Printf("  %s: %d\n", class, count)
	}
	fmt.Printf("Report written to %s\n", path)

	if report.HardFailure {
		fmt.Println("Run failed: hard failures detected")
		os.Exit(1)
	}
	fmt.Println("Run passed")
}
