package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/catalogsync/client"
	"github.com/persistorai/catalogsync/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	apiClient *client.Client
	cfg       *config.Config
	logger    *logrus.Logger

	flagURL         string
	flagKey         string
	flagFmt         string
	flagMetricsAddr string
	flagProfile     string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("catalogsync version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("catalogsync version %s", config.Version)
}

// profileConfig holds connection settings for a single profile.
type profileConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Namespace string `yaml:"namespace,omitempty"`
}

// profilesFile is the top-level config file structure.
type profilesFile struct {
	Profiles      map[string]profileConfig `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "catalogsync",
		Short:   "Incremental metadata extraction and lineage publishing for a data catalog",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "Catalog server URL (env: CATALOG_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: CATALOG_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /status on this address (env: METRICS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Profile from ~/.catalogsync/config.yaml")

	initCmd := newInitCmd()
	initCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil } // skip client setup
	doctorCmd := newDoctorCmd()
	doctorCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil } // skip client setup

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(newSourcesCmd())
	rootCmd.AddCommand(newMarkerCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newPushCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the environment config, layers the profile file and flags on
// top and builds the shared logger and client.
func setup() error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if err := c.Apply(resolveOverrides()); err != nil {
		return err
	}

	logger = newLogger(c.LogLevel)
	cfg = c

	opts := []client.Option{
		client.WithTimeout(c.Timeout),
		client.WithAPIVersion(c.APIVersion),
		client.WithLogger(logger),
	}
	if key := c.APIKey.Value(); key != "" {
		opts = append(opts, client.WithAPIKey(key))
	}
	apiClient = client.New(c.CatalogURL, opts...)

	return nil
}

func newLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// resolveOverrides applies flag > env > config file precedence. Values set
// in the environment are already in the loaded config, so the profile only
// fills settings whose variable is unset.
func resolveOverrides() config.Overrides {
	var o config.Overrides

	if p, ok := activeProfile(); ok {
		if os.Getenv("CATALOG_URL") == "" {
			o.CatalogURL = p.URL
		}
		if os.Getenv("CATALOG_API_KEY") == "" {
			o.APIKey = p.APIKey
		}
		if os.Getenv("CATALOG_NAMESPACE") == "" {
			o.Namespace = p.Namespace
		}
	}

	if flagURL != "" {
		o.CatalogURL = flagURL
	}
	if flagKey != "" {
		o.APIKey = flagKey
	}
	if flagMetricsAddr != "" {
		o.MetricsAddr = flagMetricsAddr
	}
	return o
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".catalogsync", "config.yaml"), nil
}

func loadProfiles() (string, *profilesFile, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfgPath, nil, err
	}
	var pf profilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return cfgPath, nil, err
	}
	return cfgPath, &pf, nil
}

func activeProfile() (profileConfig, bool) {
	_, pf, err := loadProfiles()
	if err != nil || pf == nil {
		return profileConfig{}, false
	}
	name := flagProfile
	if name == "" {
		name = pf.ActiveProfile
	}
	if name == "" {
		name = "default"
	}
	p, ok := pf.Profiles[name]
	return p, ok
}
