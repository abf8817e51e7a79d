package observability

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	jobmetrics "github.com/odyssey-erp/vendorsync/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`vendorsync_[a-z_]+`)

func loadVendorSyncRules(t *testing.T) []alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "vendorsync.yml"))
	if err != nil {
		t.Fatalf("read alert file: %v", err)
	}
	var file alertFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("unmarshal alert file: %v", err)
	}
	for _, group := range file.Groups {
		if group.Name == "vendorsync" {
			return group.Rules
		}
	}
	t.Fatal("vendorsync alert group missing")
	return nil
}

// exportedNames touches every collector once so Gather reports each family.
func exportedNames(t *testing.T) map[string]bool {
	t.Helper()
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("vendor_import").End(nil)
	_ = jobs.Track("vendor_import").End(os.ErrClosed)
	jobs.AddRecords(1, "created", 1)
	jobs.ImportFinished(1, "done")
	jobs.LockConflict(1)
	metrics.Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	families, err := metrics.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	return names
}

func TestVendorSyncAlertRules(t *testing.T) {
	expected := map[string]struct {
		severity string
		anchor   string
	}{
		"VendorImportFailing":        {"critical", "import-failing"},
		"VendorRecordFailureRatio":   {"warning", "record-failures"},
		"HighErrorRate":              {"critical", "high-error-rate"},
		"VendorImportLockContention": {"warning", "stuck-vendor-lock"},
		"VendorSweepStale":           {"warning", "import-failing"},
	}

	rules := loadVendorSyncRules(t)
	if len(rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(rules))
	}
	for _, rule := range rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["runbook"] != "docs/runbook-vendorsync.md#"+want.anchor {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if rule.Expr == "" || rule.For == "" {
			t.Fatalf("rule %s must define an expression and a hold duration", rule.Alert)
		}
	}
}

func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	names := exportedNames(t)
	for _, rule := range loadVendorSyncRules(t) {
		for _, name := range metricName.FindAllString(rule.Expr, -1) {
			base := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(name, "_bucket"), "_sum"), "_count")
			if !names[base] {
				t.Fatalf("rule %s references %s which no collector exports", rule.Alert, name)
			}
		}
	}
}

func TestRunbookHasEveryAnchor(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-vendorsync.md"))
	if err != nil {
		t.Fatalf("read runbook: %v", err)
	}
	var anchors []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "## ") {
			anchors = append(anchors, strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(line, "## ")), " ", "-"))
		}
	}
	for _, rule := range loadVendorSyncRules(t) {
		anchor := rule.Annotations["runbook"][strings.Index(rule.Annotations["runbook"], "#")+1:]
		found := false
		for _, a := range anchors {
			if a == anchor {
				found = true
			}
		}
		if !found {
			t.Fatalf("runbook has no section for %s (%s)", rule.Alert, anchor)
		}
	}
}
