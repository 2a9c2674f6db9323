package config

import "github.com/minisc/minisc/internal/cloud"

// Defaults for both providers.
const (
	DefaultClusterTag        = "minisc"
	DefaultNetworkCIDR       = "10.0.0.0/16"
	DefaultSubnetCIDR        = "10.0.1.0/24"
	DefaultWorkerCount       = 2
	DefaultKubernetesVersion = "1.31"
	DefaultPodCIDR           = "10.244.0.0/16"
	DefaultCNIManifest       = "https://github.com/flannel-io/flannel/releases/latest/download/kube-flannel.yml"

	DefaultAWSRegion       = "us-east-1"
	DefaultAWSInstanceType = "t2.medium"
	DefaultAWSImagePattern = "amzn2-ami-hvm-*-x86_64-gp2"
	DefaultAWSImageOwner   = "amazon"
	DefaultAWSUser         = "ec2-user"

	DefaultAzureLocation     = "eastus"
	DefaultAzureInstanceType = "Standard_D2s_v3"
	DefaultAzurePublisher    = "Canonical"
	DefaultAzureOffer        = "ubuntu-24_04-lts"
	DefaultAzureSKU          = "server"
	DefaultAzureUser         = "azureuser"
)

// DefaultHelmRepos are added before charts are installed.
var DefaultHelmRepos = []HelmRepo{
	{Name: "bitnami", URL: "https://charts.bitnami.com/bitnami"},
	{Name: "kubernetes-dashboard", URL: "https://kubernetes.github.io/dashboard/"},
}

// DefaultHelmCharts is the add-on set installed on a fresh cluster.
var DefaultHelmCharts = []HelmChart{
	{Release: "metrics-server", Chart: "bitnami/metrics-server", Namespace: "kube-system"},
	{Release: "nginx-ingress", Chart: "bitnami/nginx-ingress-controller", Namespace: "ingress-nginx", CreateNamespace: true},
	{Release: "prometheus", Chart: "bitnami/kube-prometheus", Namespace: "monitoring", CreateNamespace: true},
	{Release: "kubernetes-dashboard", Chart: "kubernetes-dashboard/kubernetes-dashboard", Namespace: "kubernetes-dashboard", CreateNamespace: true},
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. Provider specific defaults depend on
// Provider, so call it again after the provider changes.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = cloud.ProviderAWS
	}
	if c.ClusterTag == "" {
		c.ClusterTag = DefaultClusterTag
	}
	if c.Network.CIDR == "" {
		c.Network.CIDR = DefaultNetworkCIDR
	}
	if c.Network.SubnetCIDR == "" {
		c.Network.SubnetCIDR = DefaultSubnetCIDR
	}
	if c.Security.Profile == "" {
		c.Security.Profile = ProfileLeastPrivilege
	}
	if len(c.Security.AdminCIDRs) == 0 {
		c.Security.AdminCIDRs = []string{"0.0.0.0/0"}
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = DefaultWorkerCount
	}
	if c.Kubernetes.Version == "" {
		c.Kubernetes.Version = DefaultKubernetesVersion
	}
	if c.Kubernetes.PodCIDR == "" {
		c.Kubernetes.PodCIDR = DefaultPodCIDR
	}
	if c.Kubernetes.CNIManifest == "" {
		c.Kubernetes.CNIManifest = DefaultCNIManifest
	}
	if len(c.Helm.Repos) == 0 {
		c.Helm.Repos = append([]HelmRepo(nil), DefaultHelmRepos...)
	}
	if len(c.Helm.Charts) == 0 {
		c.Helm.Charts = append([]HelmChart(nil), DefaultHelmCharts...)
	}

	switch c.Provider {
	case cloud.ProviderAzure:
		c.applyAzureDefaults()
	default:
		c.applyAWSDefaults()
	}
}

func (c *Config) applyAWSDefaults() {
	if c.Region == "" {
		c.Region = DefaultAWSRegion
	}
	if c.SSH.User == "" {
		c.SSH.User = DefaultAWSUser
	}
	for _, img := range []*ImageConfig{&c.Head.Image, &c.Workers.Image} {
		if img.NamePattern == "" {
			img.NamePattern = DefaultAWSImagePattern
		}
		if len(img.Owners) == 0 {
			img.Owners = []string{DefaultAWSImageOwner}
		}
	}
	if c.Head.InstanceType == "" {
		c.Head.InstanceType = DefaultAWSInstanceType
	}
	if c.Workers.InstanceType == "" {
		c.Workers.InstanceType = DefaultAWSInstanceType
	}
}

func (c *Config) applyAzureDefaults() {
	if c.Region == "" {
		c.Region = DefaultAzureLocation
	}
	if c.SSH.User == "" {
		c.SSH.User = DefaultAzureUser
	}
	if c.Azure.ResourceGroup == "" {
		c.Azure.ResourceGroup = c.ClusterTag + "-rg"
	}
	for _, img := range []*ImageConfig{&c.Head.Image, &c.Workers.Image} {
		if img.Publisher == "" {
			img.Publisher = DefaultAzurePublisher
		}
		if img.Offer == "" {
			img.Offer = DefaultAzureOffer
		}
		if img.SKU == "" {
			img.SKU = DefaultAzureSKU
		}
	}
	if c.Head.InstanceType == "" {
		c.Head.InstanceType = DefaultAzureInstanceType
	}
	if c.Workers.InstanceType == "" {
		c.Workers.InstanceType = DefaultAzureInstanceType
	}
}
