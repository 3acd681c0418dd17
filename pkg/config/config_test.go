package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestReadDefaults(t *testing.T) {
	g := NewWithT(t)

	cfg, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(cfg.Namespace).To(Equal("moodle"))
	g.Expect(cfg.Release).To(Equal("moodle"))

	names := []string{}
	for _, step := range cfg.Steps {
		names = append(names, step.Name)
	}
	g.Expect(names).To(Equal([]string{"secret", "pvc", "postgres", "moodle", "ingress"}))

	g.Expect(cfg.Readiness.Attempts).To(Equal(30))
	g.Expect(cfg.Readiness.Interval.Duration).To(Equal(10 * time.Second))
	g.Expect(cfg.FieldManager.Name).To(Equal("lmsdeploy"))
	g.Expect(cfg.FieldManager.Group).To(Equal("release.lmsdeploy.dev"))
	g.Expect(cfg.ApplyOrder.First).To(ContainElement("Namespace"))
}

func TestReadPartial(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "lmsdeploy.yaml")
	data := `apiVersion: lmsdeploy.dev/v1
kind: Config
namespace: lms
steps:
  - name: db
    path: db.yaml
  - name: app
    path: app.yaml
`
	g.Expect(os.WriteFile(path, []byte(data), 0644)).To(Succeed())

	cfg, err := Read(path)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(cfg.Namespace).To(Equal("lms"))
	g.Expect(cfg.Release).To(Equal("lms"))
	g.Expect(cfg.Steps).To(HaveLen(2))
	g.Expect(cfg.Readiness.Attempts).To(Equal(30))
	g.Expect(cfg.FieldManager.Name).To(Equal("lmsdeploy"))
}

func TestWriteRead(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "conf", "lmsdeploy.yaml")

	cfg := NewConfig()
	cfg.Namespace = "staging"
	cfg.Release = "moodle-staging"
	cfg.Cluster = &Cluster{
		Provider:      ProviderAKS,
		Name:          "lms",
		ResourceGroup: "lms-rg",
		Region:        "westeurope",
		NodeCount:     2,
		NodeSize:      "Standard_B2s",
	}
	g.Expect(cfg.Write(path)).To(Succeed())

	got, err := Read(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got.Namespace).To(Equal("staging"))
	g.Expect(got.Release).To(Equal("moodle-staging"))
	g.Expect(got.Cluster.Provider).To(Equal("aks"))
	g.Expect(got.Cluster.NodeCount).To(Equal(2))
	g.Expect(got.Steps).To(Equal(NewConfig().Steps))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		matchErr string
	}{
		{
			name:     "duplicate step",
			mutate:   func(c *Config) { c.Steps = append(c.Steps, Step{Name: "secret", Path: "other.yaml"}) },
			matchErr: "duplicate step",
		},
		{
			name:     "step without path",
			mutate:   func(c *Config) { c.Steps[0].Path = "" },
			matchErr: "no path",
		},
		{
			name:     "zero attempts",
			mutate:   func(c *Config) { c.Readiness.Attempts = 0 },
			matchErr: "attempts",
		},
		{
			name:     "negative interval",
			mutate:   func(c *Config) { c.Readiness.Interval.Duration = -time.Second },
			matchErr: "interval",
		},
		{
			name:     "unknown provider",
			mutate:   func(c *Config) { c.Cluster = &Cluster{Provider: "gke", Name: "lms"} },
			matchErr: "unsupported cluster provider",
		},
		{
			name:     "aks without group",
			mutate:   func(c *Config) { c.Cluster = &Cluster{Provider: ProviderAKS, Name: "lms", Region: "westeurope"} },
			matchErr: "resource group",
		},
		{
			name:     "empty field manager",
			mutate:   func(c *Config) { c.FieldManager.Name = "" },
			matchErr: "field manager",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			g.Expect(err).To(HaveOccurred())
			g.Expect(err.Error()).To(ContainSubstring(tt.matchErr))
		})
	}
}
