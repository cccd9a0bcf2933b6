package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modelops/cardflow/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and host resources",
	Long:  "Verify the configuration, provider credentials, and state directory, and report host resource usage.",
	RunE:  runDoctor,
}

var doctorJSON bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output as JSON")
}

type doctorReport struct {
	Checks  []doctorCheck             `json:"checks"`
	Metrics diagnostics.SystemMetrics `json:"metrics"`
}

type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func runDoctor(_ *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	report := doctorReport{
		Metrics: diagnostics.NewCollector().Collect(),
	}

	report.Checks = append(report.Checks, checkStateDir(cfg.State.Path))

	report.Checks = append(report.Checks, doctorCheck{
		Name:   "openai credentials",
		OK:     !cfg.Providers.OpenAI.Enabled || cfg.Providers.OpenAI.APIKey != "",
		Detail: providerDetail(cfg.Providers.OpenAI.Enabled, cfg.Providers.OpenAI.APIKey),
	})
	report.Checks = append(report.Checks, doctorCheck{
		Name:   "anthropic credentials",
		OK:     !cfg.Providers.Anthropic.Enabled || cfg.Providers.Anthropic.APIKey != "",
		Detail: providerDetail(cfg.Providers.Anthropic.Enabled, cfg.Providers.Anthropic.APIKey),
	})

	report.Checks = append(report.Checks, doctorCheck{
		Name:   "tool servers configured",
		OK:     true,
		Detail: fmt.Sprintf("%d server(s)", len(cfg.Tools.Servers)),
	})

	if doctorJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println("Checking configuration...")
	fmt.Println()
	for _, check := range report.Checks {
		icon := "✓"
		if !check.OK {
			icon = "✗"
		}
		if check.Detail != "" {
			fmt.Printf("  %s %s (%s)\n", icon, check.Name, check.Detail)
		} else {
			fmt.Printf("  %s %s\n", icon, check.Name)
		}
	}

	m := report.Metrics
	fmt.Println()
	fmt.Println("Host resources:")
	fmt.Printf("  CPU:    %d cores, %.1f%% used\n", m.CPUCores, m.CPUPercent)
	fmt.Printf("  Memory: %.0f/%.0f MB (%.1f%%)\n", m.MemUsedMB, m.MemTotalMB, m.MemPercent)
	fmt.Printf("  Disk:   %.1f/%.1f GB (%.1f%%)\n", m.DiskUsedGB, m.DiskTotalGB, m.DiskPercent)
	return nil
}

func checkStateDir(path string) doctorCheck {
	dir := filepath.Dir(path)
	if filepath.Ext(path) == "" {
		dir = path
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return doctorCheck{Name: "state directory writable", OK: false, Detail: err.Error()}
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return doctorCheck{Name: "state directory writable", OK: false, Detail: err.Error()}
	}
	_ = os.Remove(probe)
	return doctorCheck{Name: "state directory writable", OK: true, Detail: dir}
}

func providerDetail(enabled bool, apiKey string) string {
	switch {
	case !enabled:
		return "disabled"
	case apiKey == "":
		return "enabled but no API key set"
	default:
		return "configured"
	}
}
