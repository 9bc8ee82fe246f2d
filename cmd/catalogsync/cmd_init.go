package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/catalogsync/client"
)

const defaultCatalogURL = "http://localhost:7187"

func newInitCmd() *cobra.Command {
	var initProfile string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up catalogsync configuration",
		Long: "Interactive setup that writes a profile to ~/.catalogsync/config.yaml.\n" +
			"Passing --url or --api-key skips the prompts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			nonInteractive := flagURL != "" || flagKey != ""
			return runInit(cmd.Context(), initProfile, flagURL, flagKey, nonInteractive)
		},
	}

	cmd.Flags().StringVar(&initProfile, "name", "default", "Profile name")
	return cmd
}

func runInit(ctx context.Context, profile, url, apiKey string, nonInteractive bool) error {
	if !nonInteractive {
		fmt.Println("\n  catalogsync setup")
		fmt.Println()

		reader := bufio.NewReader(os.Stdin)

		fmt.Printf("  Catalog URL [%s]: ", defaultCatalogURL)
		line, _ := reader.ReadString('\n')
		url = strings.TrimSpace(line)

		fmt.Print("  API Key: ")
		keyLine, _ := reader.ReadString('\n')
		apiKey = strings.TrimSpace(keyLine)
	}

	if url == "" {
		url = defaultCatalogURL
	}

	if !nonInteractive {
		fmt.Print("\n  Testing connection... ")
	}
	n, err := testConnection(ctx, url, apiKey)
	if err != nil {
		if !nonInteractive {
			fmt.Println("failed")
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	if !nonInteractive {
		fmt.Printf("ok (%d sources)\n", n)
	}

	cfgPath, err := writeProfile(profile, profileConfig{URL: url, APIKey: apiKey})
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Config saved to %s\n", cfgPath)
	if !nonInteractive {
		fmt.Println()
		fmt.Println("  Next steps:")
		fmt.Println("    catalogsync doctor          # Full diagnostic check")
		fmt.Println("    catalogsync sources         # List catalog sources")
		fmt.Println("    catalogsync marker current  # Current extraction marker")
		fmt.Println()
	}

	return nil
}

// testConnection lists sources with the given credentials and returns how
// many the catalog knows.
func testConnection(ctx context.Context, url, apiKey string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := []client.Option{}
	if apiKey != "" {
		opts = append(opts, client.WithAPIKey(apiKey))
	}
	sources, err := client.New(url, opts...).Sources.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(sources), nil
}

// writeProfile stores p under name, keeping other profiles, and makes it
// the active profile.
func writeProfile(name string, p profileConfig) (string, error) {
	cfgPath, pf, err := loadProfiles()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if pf == nil {
		pf = &profilesFile{}
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]profileConfig{}
	}
	pf.Profiles[name] = p
	pf.ActiveProfile = name

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(pf)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return "", err
	}

	return cfgPath, nil
}
