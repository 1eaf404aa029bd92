// Package render turns a reconciled service list into an HAProxy configuration.
//
// The default template routes host-mode services on the Host header and
// path-mode services on a path prefix, with one backend per service and one
// server line per container. Any text/template may replace it; templates get
// the sprig function library plus backendName and aclName.
package render

import (
	"bytes"
	"cmp"
	"context"
	_ "embed"
	"fmt"
	"net"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig/v3"

	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
)

//go:embed templates/haproxy.cfg.tmpl
var defaultTemplate string

// DefaultTemplate returns the embedded HAProxy template text.
func DefaultTemplate() string {
	return defaultTemplate
}

// Renderer renders services through a parsed template.
type Renderer struct {
	tmpl        *template.Template
	backendPort int
	bindPort    int
	maxConn     int
}

// New parses the configured template.
func New(opts ...Option) (*Renderer, error) {
	o := &options{
		name:        "haproxy.cfg",
		text:        defaultTemplate,
		backendPort: constants.DefaultBackendPort,
		bindPort:    constants.DefaultBindPort,
		maxConn:     constants.DefaultMaxConn,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	tmpl, err := template.New(o.name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap{
			"backendName": BackendName,
			"aclName":     ACLName,
		}).
		Parse(o.text)
	if err != nil {
		return nil, errors.NewConfigError("template", "cannot parse "+o.name, err)
	}

	return &Renderer{
		tmpl:        tmpl,
		backendPort: o.backendPort,
		bindPort:    o.bindPort,
		maxConn:     o.maxConn,
	}, nil
}

// Data is the value templates execute against.
type Data struct {
	Services    []Service
	Routes      []Service // Services in match order
	BackendPort int
	BindPort    int
	MaxConn     int
}

// Service is a normalized service with its server lines.
type Service struct {
	services.Service
	Servers []Server
}

// Server is one backend server line.
type Server struct {
	Name    string
	Address string
}

// Render normalizes list and executes the template.
func (r *Renderer) Render(ctx context.Context, list []services.Service) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := r.data(list)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", errors.NewRenderError("", err.Error(), err)
	}
	return buf.String(), nil
}

func (r *Renderer) data(list []services.Service) (*Data, error) {
	seen := make(map[string]string, len(list))
	out := make([]Service, 0, len(list))

	for _, svc := range list {
		svc, err := normalize(svc)
		if err != nil {
			return nil, err
		}
		if other, ok := seen[BackendName(svc.Name)]; ok {
			return nil, errors.NewRenderError(svc.Name, fmt.Sprintf("backend name collides with service %s", other), nil)
		}
		seen[BackendName(svc.Name)] = svc.Name

		servers, err := serverLines(svc)
		if err != nil {
			return nil, err
		}
		out = append(out, Service{Service: svc, Servers: servers})
	}

	slices.SortFunc(out, func(a, b Service) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return &Data{
		Services:    out,
		Routes:      routes(out),
		BackendPort: r.backendPort,
		BindPort:    r.bindPort,
		MaxConn:     r.maxConn,
	}, nil
}

// normalize applies the host default and rejects what the template cannot express.
func normalize(svc services.Service) (services.Service, error) {
	svc = svc.Copy()
	if !svc.ConfigMode.IsSet() {
		svc.ConfigMode = services.ConfigModeHost
	}
	if !svc.ConfigMode.IsKnown() {
		return svc, errors.NewRenderError(svc.Name, fmt.Sprintf("unknown config mode %q", svc.ConfigMode), nil)
	}
	if svc.Predicate == "" {
		return svc, errors.NewRenderError(svc.Name, "predicate is required", nil)
	}
	if !token(svc.Predicate) {
		return svc, errors.NewRenderError(svc.Name, fmt.Sprintf("predicate %q must be a single token", svc.Predicate), nil)
	}
	if svc.Cookie != "" && !identifier.MatchString(svc.Cookie) {
		return svc, errors.NewRenderError(svc.Name, fmt.Sprintf("invalid cookie name %q", svc.Cookie), nil)
	}
	return svc, nil
}

// serverLines sorts containers by id and gives each a unique server name.
// A container id seen twice (with different addresses) gets a numeric suffix.
func serverLines(svc services.Service) ([]Server, error) {
	containers := services.CopyContainers(svc.Containers)
	slices.SortFunc(containers, func(a, b services.Container) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.IP, b.IP))
	})

	counts := make(map[string]int, len(containers))
	servers := make([]Server, 0, len(containers))
	for _, c := range containers {
		if c.IP == "" {
			return nil, errors.NewRenderError(svc.Name, fmt.Sprintf("container %s has no ip", c.ID), nil)
		}
		if net.ParseIP(c.IP) == nil && !hostname.MatchString(c.IP) {
			return nil, errors.NewRenderError(svc.Name, fmt.Sprintf("container %s has invalid address %q", c.ID, c.IP), nil)
		}
		name := sanitize(c.ID)
		counts[name]++
		if n := counts[name]; n > 1 {
			name += "-" + strconv.Itoa(n)
		}
		servers = append(servers, Server{Name: name, Address: c.IP})
	}
	return servers, nil
}

// routes orders services for use_backend rules: host rules first, then path
// rules with longer prefixes ahead of the shorter prefixes they contain.
func routes(list []Service) []Service {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b Service) int {
		aPath := a.ConfigMode == services.ConfigModePath
		bPath := b.ConfigMode == services.ConfigModePath
		switch {
		case aPath != bPath:
			if aPath {
				return 1
			}
			return -1
		case aPath:
			return cmp.Compare(len(b.Predicate), len(a.Predicate))
		default:
			return 0
		}
	})
	return out
}

var (
	identifier = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
	hostname   = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)
	unsafeChar = regexp.MustCompile(`[^A-Za-z0-9_.:-]`)
)

// token reports whether the HAProxy config parser reads s as a single word.
func token(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`#"'\`, r)
	})
}

func sanitize(s string) string {
	return unsafeChar.ReplaceAllString(s, "_")
}

// BackendName returns the HAProxy backend identifier for a service.
func BackendName(service string) string {
	return "be_" + sanitize(service)
}

// ACLName returns the HAProxy ACL identifier for a service.
func ACLName(service string) string {
	return "is_" + sanitize(service)
}
