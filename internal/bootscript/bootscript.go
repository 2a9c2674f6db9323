// Package bootscript renders the first-boot scripts handed to new nodes.
//
// Templates use text/template with the sprig function set and fail on any
// missing key. Required values are checked before rendering so a worker can
// never be launched with an empty join token or controller address.
package bootscript

import (
	"bytes"
	"embed"
	"fmt"
	"net"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/minisc/minisc/internal/cloud"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// Placeholder keys available to templates.
const (
	KeyNetworkCIDR       = "network_cidr"
	KeyAdminUser         = "admin_user"
	KeyKubernetesVersion = "kubernetes_version"
	KeyJoinToken         = "join_token"
	KeyControllerAddress = "controller_address"
	KeyPodCIDR           = "pod_cidr"
	KeyCNIManifest       = "cni_manifest"
	KeyJoinCommand       = "join_command"
)

// APIServerPort is the port workers join the head node on.
const APIServerPort = 6443

var required = map[cloud.Role][]string{
	cloud.RoleHead:   {KeyNetworkCIDR, KeyAdminUser, KeyKubernetesVersion, KeyPodCIDR, KeyCNIManifest},
	cloud.RoleWorker: {KeyNetworkCIDR, KeyAdminUser, KeyKubernetesVersion, KeyJoinToken, KeyControllerAddress},
}

// Values are the inputs to a boot script.
type Values struct {
	NetworkCIDR       string
	AdminUser         string
	KubernetesVersion string
	PodCIDR           string
	CNIManifest       string
	JoinToken         cloud.JoinToken
	ControllerAddress string
}

func (v Values) data() (map[string]string, error) {
	join, err := JoinCommand(v.JoinToken, v.ControllerAddress)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		KeyNetworkCIDR:       v.NetworkCIDR,
		KeyAdminUser:         v.AdminUser,
		KeyKubernetesVersion: v.KubernetesVersion,
		KeyPodCIDR:           v.PodCIDR,
		KeyCNIManifest:       v.CNIManifest,
		KeyJoinToken:         string(v.JoinToken),
		KeyControllerAddress: v.ControllerAddress,
		KeyJoinCommand:       join,
	}, nil
}

var (
	shellSafe    = regexp.MustCompile(`^[A-Za-z0-9._:/=@%+,-]+$`)
	joinArgValue = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)
	joinHost     = regexp.MustCompile(`^[A-Za-z0-9.:-]+$`)
)

// joinFlag reports whether name is a kubeadm join flag a pasted command may
// carry, and whether it takes a value.
func joinFlag(name string) (takesValue, ok bool) {
	switch name {
	case "--token", "--discovery-token-ca-cert-hash":
		return true, true
	case "--discovery-token-unsafe-skip-ca-verification":
		return false, true
	}
	return false, false
}

// ShellQuote returns s as a single POSIX shell word.
func ShellQuote(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// JoinCommand turns a join token into the command a worker runs. The token
// is opaque and is always passed as a single quoted argument. A token that
// is a full kubeadm join command is parsed and rebuilt from its endpoint and
// the discovery flags; anything else in it is rejected.
func JoinCommand(token cloud.JoinToken, controllerAddress string) (string, error) {
	t := strings.TrimSpace(string(token))
	if t == "" {
		return "", nil
	}
	if strings.HasPrefix(t, "kubeadm join") {
		return parseJoinCommand(t)
	}
	endpoint := net.JoinHostPort(strings.TrimSpace(controllerAddress), strconv.Itoa(APIServerPort))
	return fmt.Sprintf("kubeadm join %s --token %s --discovery-token-unsafe-skip-ca-verification",
		ShellQuote(endpoint), ShellQuote(t)), nil
}

func parseJoinCommand(cmd string) (string, error) {
	var fields []string
	for _, f := range strings.Fields(cmd) {
		if f != "\\" {
			fields = append(fields, f)
		}
	}
	if len(fields) < 3 || fields[0] != "kubeadm" || fields[1] != "join" {
		return "", fmt.Errorf("%w: join command has no endpoint", cloud.ErrTemplateRender)
	}

	endpoint := fields[2]
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || !joinHost.MatchString(host) {
		return "", fmt.Errorf("%w: invalid join endpoint %q", cloud.ErrTemplateRender, endpoint)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("%w: invalid join endpoint %q", cloud.ErrTemplateRender, endpoint)
	}

	args := []string{"kubeadm", "join", ShellQuote(endpoint)}
	rest := fields[3:]
	for i := 0; i < len(rest); i++ {
		name, value, inline := strings.Cut(rest[i], "=")
		takesValue, ok := joinFlag(name)
		if !ok {
			return "", fmt.Errorf("%w: unsupported join argument %q", cloud.ErrTemplateRender, rest[i])
		}
		if !takesValue {
			if inline {
				return "", fmt.Errorf("%w: %s takes no value", cloud.ErrTemplateRender, name)
			}
			args = append(args, name)
			continue
		}
		if !inline {
			if i+1 >= len(rest) {
				return "", fmt.Errorf("%w: %s needs a value", cloud.ErrTemplateRender, name)
			}
			i++
			value = rest[i]
		}
		if !joinArgValue.MatchString(value) {
			return "", fmt.Errorf("%w: invalid value for %s", cloud.ErrTemplateRender, name)
		}
		args = append(args, name, ShellQuote(value))
	}
	return strings.Join(args, " "), nil
}

// Renderer renders head and worker scripts.
type Renderer struct {
	templates map[cloud.Role]*template.Template
}

// NewRenderer builds a renderer from the embedded templates. Non-empty
// override paths replace the head or worker template with a file.
func NewRenderer(headPath, workerPath string) (*Renderer, error) {
	head, err := load("head", "templates/head.sh.tmpl", headPath)
	if err != nil {
		return nil, err
	}
	worker, err := load("worker", "templates/worker.sh.tmpl", workerPath)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: map[cloud.Role]*template.Template{
		cloud.RoleHead:   head,
		cloud.RoleWorker: worker,
	}}, nil
}

func load(name, embeddedPath, overridePath string) (*template.Template, error) {
	var body []byte
	var err error
	if overridePath != "" {
		// #nosec G304
		body, err = os.ReadFile(overridePath)
	} else {
		body, err = embedded.ReadFile(embeddedPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", name, err)
	}

	shared, err := embedded.ReadFile("templates/packages.sh.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read shared template: %w", err)
	}

	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap{"shquote": ShellQuote}).
		Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s template: %w", cloud.ErrTemplateRender, name, err)
	}
	if _, err := tmpl.New("packages.sh").Parse(string(shared)); err != nil {
		return nil, fmt.Errorf("%w: parse shared template: %w", cloud.ErrTemplateRender, err)
	}
	return tmpl, nil
}

// Render produces the script for role. It fails with cloud.ErrTemplateRender
// when a required value is empty or the output still contains a placeholder.
func (r *Renderer) Render(role cloud.Role, values Values) (string, error) {
	tmpl, ok := r.templates[role]
	if !ok {
		return "", fmt.Errorf("%w: no template for role %q", cloud.ErrTemplateRender, role)
	}

	data, err := values.data()
	if err != nil {
		return "", err
	}
	var missing []string
	for _, key := range required[role] {
		if strings.TrimSpace(data[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s script is missing %s", cloud.ErrTemplateRender, role, strings.Join(missing, ", "))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %w", cloud.ErrTemplateRender, err)
	}

	out := buf.String()
	if idx := strings.Index(out, "{{"); idx >= 0 {
		return "", fmt.Errorf("%w: unresolved placeholder at offset %d", cloud.ErrTemplateRender, idx)
	}
	return out, nil
}
