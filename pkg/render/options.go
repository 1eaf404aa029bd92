package render

import (
	"fmt"
	"os"

	"github.com/agentstation/lbmap/pkg/errors"
)

type options struct {
	name        string
	text        string
	backendPort int
	bindPort    int
	maxConn     int
}

// Option configures a Renderer.
type Option func(*options) error

// WithTemplate replaces the default template with text.
func WithTemplate(name, text string) Option {
	return func(o *options) error {
		if text == "" {
			return errors.NewValidationError("template", name, "must not be empty")
		}
		o.name = name
		o.text = text
		return nil
	}
}

// WithTemplateFile replaces the default template with the contents of path.
func WithTemplateFile(path string) Option {
	return func(o *options) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.NewConfigError("template", fmt.Sprintf("cannot read %s", path), err)
		}
		return WithTemplate(path, string(data))(o)
	}
}

// WithBackendPort sets the port each container serves on.
func WithBackendPort(port int) Option {
	return func(o *options) error {
		if err := validPort("backend_port", port); err != nil {
			return err
		}
		o.backendPort = port
		return nil
	}
}

// WithBindPort sets the port the frontend listens on.
func WithBindPort(port int) Option {
	return func(o *options) error {
		if err := validPort("bind_port", port); err != nil {
			return err
		}
		o.bindPort = port
		return nil
	}
}

// WithMaxConn sets the global connection limit.
func WithMaxConn(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.NewValidationError("maxconn", n, "must be positive")
		}
		o.maxConn = n
		return nil
	}
}

func validPort(field string, port int) error {
	if port < 1 || port > 65535 {
		return errors.NewValidationError(field, port, "must be between 1 and 65535")
	}
	return nil
}
