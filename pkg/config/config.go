package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fluxcd/pkg/ssa"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const (
	ConfigKind            = "Config"
	ConfigAPIVersion      = "lmsdeploy.dev/v1"
	FieldManagerName      = "lmsdeploy"
	FieldManagerGroup     = "release.lmsdeploy.dev"
	DefaultConfigFileName = "lmsdeploy.yaml"

	ProviderAKS      = "aks"
	ProviderMinikube = "minikube"
)

type Config struct {
	metav1.TypeMeta `json:",inline"`

	// Namespace is the namespace the release objects belong to.
	// It is created if not present before anything is applied.
	Namespace string `json:"namespace"`

	// Release names the deployment; the release ledger ConfigMap
	// is called 'release-<name>'.
	Release string `json:"release"`

	// Cluster describes the cluster-level prerequisites managed
	// by the 'cluster' commands.
	Cluster *Cluster `json:"cluster,omitempty"`

	// Steps holds the ordered manifest steps. Apply runs them top
	// to bottom, delete runs them bottom to top.
	Steps []Step `json:"steps"`

	// Readiness bounds the post-deploy address poll.
	Readiness *Readiness `json:"readiness,omitempty"`

	// ApplyOrder holds the list of the Kubernetes API Kinds that
	// describes in which order they are reconciled within a step.
	ApplyOrder *KindOrder `json:"applyOrder,omitempty"`

	// FieldManager holds the manager name and group used for server-side apply.
	FieldManager *FieldManager `json:"fieldManager,omitempty"`
}

// Step points at a manifest file or a kustomize overlay directory,
// relative paths are resolved against the deploy source directory.
type Step struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type Cluster struct {
	// Provider is one of 'aks' or 'minikube'.
	Provider string `json:"provider"`

	// Name is the managed cluster name or the minikube profile.
	Name string `json:"name"`

	// ResourceGroup is the Azure resource group (aks only).
	ResourceGroup string `json:"resourceGroup,omitempty"`

	// Region is the Azure location (aks only).
	Region string `json:"region,omitempty"`

	NodeCount int    `json:"nodeCount,omitempty"`
	NodeSize  string `json:"nodeSize,omitempty"`
}

type Readiness struct {
	// Attempts caps how many times the address query runs.
	Attempts int `json:"attempts"`

	// Interval is the fixed pause between queries.
	Interval metav1.Duration `json:"interval"`

	// Ingress is the Ingress whose load balancer address is polled.
	Ingress string `json:"ingress,omitempty"`
}

type FieldManager struct {
	// Name sets the field manager for the reconciled objects.
	Name string `json:"name"`

	// Group sets the owner label key prefix.
	Group string `json:"group"`
}

// KindOrder holds the list of the Kubernetes API Kinds that
// describes in which order they are reconciled.
type KindOrder struct {
	// First contains the list of Kubernetes API Kinds
	// that are applied first and delete last.
	First []string `json:"first"`

	// Last contains the list of Kubernetes API Kinds
	// that are applied last and delete first.
	Last []string `json:"last"`
}

// NewConfig returns the config used by the original Moodle stack:
// five steps applied secret first, ingress last.
func NewConfig() *Config {
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       ConfigKind,
			APIVersion: ConfigAPIVersion,
		},
		Namespace:    "moodle",
		Release:      "moodle",
		Steps:        defaultSteps(),
		Readiness:    defaultReadiness(),
		ApplyOrder:   defaultKindOrder(),
		FieldManager: defaultFieldManager(),
	}
}

func defaultSteps() []Step {
	return []Step{
		{Name: "secret", Path: "manifests/secret.yaml"},
		{Name: "pvc", Path: "manifests/pvc.yaml"},
		{Name: "postgres", Path: "manifests/postgres.yaml"},
		{Name: "moodle", Path: "manifests/moodle.yaml"},
		{Name: "ingress", Path: "manifests/ingress.yaml"},
	}
}

func defaultReadiness() *Readiness {
	return &Readiness{
		Attempts: 30,
		Interval: metav1.Duration{Duration: 10 * time.Second},
		Ingress:  "moodle",
	}
}

func defaultKindOrder() *KindOrder {
	return &KindOrder{
		First: ssa.ReconcileOrder.First,
		Last:  ssa.ReconcileOrder.Last,
	}
}

func defaultFieldManager() *FieldManager {
	return &FieldManager{
		Name:  FieldManagerName,
		Group: FieldManagerGroup,
	}
}

// DefaultConfigPath returns 'lmsdeploy.yaml' in the working directory.
func DefaultConfigPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, DefaultConfigFileName), nil
}

// Read loads the config from the specified path,
// if the config file is not found, a default is returned.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("working dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}

	cfgData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(cfgData, cfg); err != nil {
		return nil, err
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "moodle"
	}

	if cfg.Release == "" {
		cfg.Release = cfg.Namespace
	}

	if len(cfg.Steps) == 0 {
		cfg.Steps = defaultSteps()
	}

	if cfg.Readiness == nil {
		cfg.Readiness = defaultReadiness()
	}

	if cfg.ApplyOrder == nil {
		cfg.ApplyOrder = defaultKindOrder()
	}

	if cfg.FieldManager == nil {
		cfg.FieldManager = defaultFieldManager()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configs that would make the deploy sequence ambiguous.
func (c *Config) Validate() error {
	if c.FieldManager.Name == "" {
		return fmt.Errorf("the field manager name can't be empty")
	}

	if c.FieldManager.Group == "" {
		return fmt.Errorf("the field manager group can't be empty")
	}

	seen := map[string]bool{}
	for _, step := range c.Steps {
		if step.Name == "" {
			return fmt.Errorf("step with path '%s' has no name", step.Path)
		}
		if step.Path == "" {
			return fmt.Errorf("step '%s' has no path", step.Name)
		}
		if seen[step.Name] {
			return fmt.Errorf("duplicate step name '%s'", step.Name)
		}
		seen[step.Name] = true
	}

	if c.Readiness != nil {
		if c.Readiness.Attempts < 1 {
			return fmt.Errorf("readiness attempts must be at least 1, got %d", c.Readiness.Attempts)
		}
		if c.Readiness.Interval.Duration <= 0 {
			return fmt.Errorf("readiness interval must be positive, got %s", c.Readiness.Interval.Duration)
		}
	}

	if c.Cluster != nil {
		switch c.Cluster.Provider {
		case ProviderAKS:
			if c.Cluster.ResourceGroup == "" {
				return fmt.Errorf("cluster provider aks requires a resource group")
			}
			if c.Cluster.Region == "" {
				return fmt.Errorf("cluster provider aks requires a region")
			}
		case ProviderMinikube:
		default:
			return fmt.Errorf("unsupported cluster provider '%s', must be aks or minikube", c.Cluster.Provider)
		}
		if c.Cluster.Name == "" {
			return fmt.Errorf("cluster name can't be empty")
		}
	}

	return nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override 'lmsdeploy.yaml' in the working directory.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, cfgData, os.FileMode(0666)); err != nil {
		return err
	}

	return nil
}
