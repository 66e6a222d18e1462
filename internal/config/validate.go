package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// githubNamePattern validates GitHub owner and repository names.
var githubNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func formatValidationErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the config for required fields and valid values.
// All problems are reported together.
func Validate(c *Config) error {
	var result *multierror.Error

	switch c.Source {
	case SourceGitHub:
		result = multierror.Append(result, validateGitHub(c.GitHub)...)
	case SourceManifest:
		if err := validateManifest(c.Manifest); err != nil {
			result = multierror.Append(result, err)
		}
	default:
		result = multierror.Append(result, ValidationError{
			Field:   "source",
			Message: fmt.Sprintf("invalid source %q (must be github or manifest)", c.Source),
		})
	}

	if c.Backups.Keep < 0 {
		result = multierror.Append(result, ValidationError{
			Field:   "backups.keep",
			Message: "must not be negative",
		})
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level %q", c.Log.Level),
		})
	}

	if result != nil {
		result.ErrorFormat = formatValidationErrors
	}
	return result.ErrorOrNil()
}

func validateGitHub(g GitHubConfig) []error {
	fields := []struct{ name, value string }{
		{"github.owner", g.Owner},
		{"github.repo", g.Repo},
	}

	var errs []error
	for _, f := range fields {
		switch {
		case f.value == "":
			errs = append(errs, ValidationError{Field: f.name, Message: "is required"})
		case !githubNamePattern.MatchString(f.value):
			errs = append(errs, ValidationError{Field: f.name, Message: fmt.Sprintf("invalid name %q", f.value)})
		}
	}
	return errs
}

func validateManifest(m ManifestConfig) error {
	if m.URL == "" {
		return ValidationError{Field: "manifest.url", Message: "is required for manifest source"}
	}

	u, err := url.Parse(m.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{Field: "manifest.url", Message: fmt.Sprintf("invalid URL %q (must be http or https)", m.URL)}
	}
	return nil
}
