package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/florinutz/icelake/storage/s3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tag rules first, then the cross-field rules tags
// cannot express. All problems are reported at once.
func (c Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation: %w", err)
		}
		for _, e := range verrs {
			errs = append(errs, fmt.Sprintf("%s: failed on %q (value: %v)", fieldPath(e.Namespace()), e.Tag(), e.Value()))
		}
	}

	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		errs = append(errs, "s3.access_key_id and s3.secret_access_key must be set together")
	}
	if loc := c.Table.Location; strings.HasPrefix(loc, "s3://") {
		if _, _, err := s3.ParseURI(loc); err != nil {
			errs = append(errs, "table.location: "+err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateLocation reports an error when no table location was given by
// flag, argument or config.
func (c Config) ValidateLocation() error {
	if strings.TrimSpace(c.Table.Location) == "" {
		return errors.New("config validation: table.location is required")
	}
	return nil
}

// fieldPath turns "Config.Server.ReadTimeout" into "server.read_timeout".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
