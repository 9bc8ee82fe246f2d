package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/catalogsync/client"
	"github.com/persistorai/catalogsync/internal/config"
	"github.com/persistorai/catalogsync/internal/db"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, catalog connectivity and the marker store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := runChecks(cmd.Context())
			return printChecks(results)
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runChecks(ctx context.Context) []checkResult {
	var results []checkResult

	// 1. Profile file. Optional: the environment alone is enough.
	cfgPath, _, err := loadProfiles()
	if err != nil {
		results = append(results, checkResult{
			Name: "Config file", Passed: true,
			Detail: fmt.Sprintf("not used (%s)", cfgPath),
		})
	} else {
		results = append(results, checkResult{
			Name: "Config file", Passed: true,
			Detail: fmt.Sprintf("found (%s)", cfgPath),
		})
	}

	// 2. Effective configuration.
	c, err := config.Load()
	if err == nil {
		err = c.Apply(resolveOverrides())
	}
	if err != nil {
		return append(results, checkResult{
			Name: "Configuration", Passed: false,
			Hint: err.Error(),
		})
	}
	results = append(results, checkResult{
		Name: "Configuration", Passed: true,
		Detail: fmt.Sprintf("%s (namespace %s, marker store %s)", c.CatalogURL, c.Namespace, c.MarkerStore),
	})

	// 3. Catalog reachable and credentials accepted.
	logger = newLogger(c.LogLevel)
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := []client.Option{client.WithAPIVersion(c.APIVersion)}
	if key := c.APIKey.Value(); key != "" {
		opts = append(opts, client.WithAPIKey(key))
	}
	sources, err := client.New(c.CatalogURL, opts...).Sources.List(checkCtx)
	switch {
	case client.IsUnauthorized(err):
		results = append(results, checkResult{
			Name: "Catalog", Passed: false,
			Detail: "authentication failed",
			Hint:   "Check --api-key, CATALOG_API_KEY or run: catalogsync init",
		})
	case err != nil:
		results = append(results, checkResult{
			Name: "Catalog", Passed: false,
			Detail: c.CatalogURL,
			Hint:   fmt.Sprintf("Is the catalog running? Error: %v", err),
		})
	default:
		results = append(results, checkResult{
			Name: "Catalog", Passed: true,
			Detail: fmt.Sprintf("%d sources (API v%d)", len(sources), c.APIVersion),
		})
	}

	// 4. Marker store.
	backend, err := openMarkerStore(checkCtx, c)
	switch {
	case errors.Is(err, errNoMarkerStore):
		results = append(results, checkResult{
			Name: "Marker store", Passed: true, Detail: "disabled",
		})
	case err != nil:
		results = append(results, checkResult{
			Name: "Marker store", Passed: false,
			Hint: err.Error(),
		})
	default:
		defer backend.Close()
		entries, err := backend.store.List(checkCtx)
		if err != nil {
			results = append(results, checkResult{
				Name: "Marker store", Passed: false,
				Hint: err.Error(),
			})
		} else {
			detail := fmt.Sprintf("%s, %d checkpoints", c.MarkerStore, len(entries))
			if backend.pool != nil {
				detail += fmt.Sprintf(", schema v%d", db.SchemaVersion())
			}
			results = append(results, checkResult{
				Name: "Marker store", Passed: true, Detail: detail,
			})
		}
	}

	return results
}

func printChecks(results []checkResult) error {
	fmt.Println("\ncatalogsync doctor")
	fmt.Println()

	allPassed := true
	for _, r := range results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Printf("[%s] %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Printf("[%s] %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Printf("       Hint: %s\n", r.Hint)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}
	fmt.Println("All checks passed.")
	return nil
}
