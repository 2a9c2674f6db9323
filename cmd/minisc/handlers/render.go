package handlers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/minisc/minisc/internal/addons/helm"
	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/cluster"
	"github.com/minisc/minisc/internal/provisioning/destroy"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorDim   = lipgloss.Color("#6b7280")
	colorWhite = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	failStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

func writeTitle(b *strings.Builder, title string) {
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n")
}

func writeSection(b *strings.Builder, name string) {
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  " + name))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 35)))
	b.WriteString("\n")
}

func writeNode(b *strings.Builder, n cloud.ProvisionedNode) {
	fmt.Fprintf(b, "    %-22s %-10s public %-15s private %s\n",
		n.InstanceID, n.State, orDash(n.PublicAddress), orDash(n.PrivateAddress))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// renderDeployment summarizes a deploy.
func renderDeployment(dep *cluster.Deployment) string {
	var b strings.Builder
	writeTitle(&b, fmt.Sprintf("minisc deploy: %s (%s)", dep.ClusterTag, dep.Provider))
	fmt.Fprintf(&b, "    State: %s\n", dep.State)

	if dep.Head != nil {
		writeSection(&b, "Head node")
		writeNode(&b, *dep.Head)
	}
	if len(dep.Workers) > 0 {
		writeSection(&b, fmt.Sprintf("Workers (%d)", len(dep.Workers)))
		for _, w := range dep.Workers {
			writeNode(&b, w)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// renderTeardown summarizes a teardown.
func renderTeardown(tag string, res *destroy.Result) string {
	var b strings.Builder
	writeTitle(&b, "minisc destroy: "+tag)

	if res.Empty() {
		b.WriteString(dimStyle.Render("    Nothing to remove."))
		b.WriteString("\n\n")
		return b.String()
	}

	if len(res.Deleted) > 0 {
		writeSection(&b, fmt.Sprintf("Removed (%d)", len(res.Deleted)))
		for _, d := range res.Deleted {
			b.WriteString("    ")
			b.WriteString(okStyle.Render("✓ " + d.String()))
			b.WriteString("\n")
		}
	}
	if len(res.Failed) > 0 {
		writeSection(&b, fmt.Sprintf("Failed (%d)", len(res.Failed)))
		for _, f := range res.Failed {
			b.WriteString("    ")
			b.WriteString(failStyle.Render(fmt.Sprintf("✗ %s: %v", f.String(), f.Err)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("    Run destroy again to retry the remaining resources."))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// renderInfo prints the head node's listings.
func renderInfo(tag string, info *helm.ClusterInfo) string {
	var b strings.Builder
	writeTitle(&b, "minisc info: "+tag)
	for _, s := range []struct{ name, body string }{
		{"Nodes", info.Nodes},
		{"Helm releases", info.Releases},
		{"Pods", info.Pods},
	} {
		writeSection(&b, s.name)
		if strings.TrimSpace(s.body) == "" {
			b.WriteString(dimStyle.Render("    (unavailable)"))
			b.WriteString("\n")
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(s.body, "\n"), "\n") {
			b.WriteString("    " + line + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// renderHelmReport summarizes chart installation.
func renderHelmReport(tag string, report *helm.Report) string {
	var b strings.Builder
	writeTitle(&b, "minisc helm: "+tag)

	writeSection(&b, "Charts")
	for _, r := range report.Installed {
		b.WriteString("    " + okStyle.Render("✓ "+r) + "\n")
	}
	for _, r := range report.Skipped {
		b.WriteString("    " + dimStyle.Render("• "+r+" (already installed)") + "\n")
	}
	for _, f := range report.Failed {
		b.WriteString("    " + failStyle.Render(fmt.Sprintf("✗ %s: %v", f.Release, f.Err)) + "\n")
	}

	if report.Releases != "" {
		writeSection(&b, "Releases")
		for _, line := range strings.Split(strings.TrimRight(report.Releases, "\n"), "\n") {
			b.WriteString("    " + line + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}
