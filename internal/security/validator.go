package security

import (
	"fmt"
	"html"
	"regexp"
)

// Threat classifies a matched input pattern.
type Threat string

const (
	ThreatXSS              Threat = "xss"
	ThreatSQLInjection     Threat = "sql_injection"
	ThreatCommandInjection Threat = "command_injection"
)

var (
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?is)<iframe\b.*?</iframe>`),
	}
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|create|alter|exec|execute|script)\b`),
		regexp.MustCompile(`(--|/\*|\*/|;)`),
	}
	commandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(cmd|command|exec|system|eval|function|settimeout|setinterval)\b`),
		regexp.MustCompile("(\\$\\(|`.*`)"),
	}
)

// Violation is one rejected field.
type Violation struct {
	Field  string `json:"field"`
	Threat Threat `json:"threat"`
	Level  Level  `json:"level"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: potential %s detected", v.Field, v.Threat)
}

// InputValidator screens free text before it reaches PocketBase. Script
// injection is always rejected; strict mode also rejects SQL and shell
// syntax, which catches ordinary words like "select".
type InputValidator struct {
	cfg ValidationConfig
}

func NewInputValidator(cfg ValidationConfig) *InputValidator {
	return &InputValidator{cfg: cfg}
}

// Check returns the threat found in value, if any.
func (v *InputValidator) Check(value string) (Threat, Level, bool) {
	if !v.cfg.Enabled || value == "" {
		return "", "", false
	}
	if matchAny(xssPatterns, value) {
		return ThreatXSS, LevelCritical, true
	}
	if !v.cfg.StrictMode {
		return "", "", false
	}
	if matchAny(sqlPatterns, value) {
		return ThreatSQLInjection, LevelHigh, true
	}
	if matchAny(commandPatterns, value) {
		return ThreatCommandInjection, LevelHigh, true
	}
	return "", "", false
}

// Validate checks every field and stops after MaxErrors violations.
// Field iteration follows the order of names.
func (v *InputValidator) Validate(names []string, fields map[string]string) []Violation {
	var out []Violation
	for _, name := range names {
		if v.cfg.MaxErrors > 0 && len(out) >= v.cfg.MaxErrors {
			break
		}
		if threat, level, found := v.Check(fields[name]); found {
			out = append(out, Violation{Field: name, Threat: threat, Level: level})
		}
	}
	return out
}

// Sanitize escapes HTML so the text renders inert.
func Sanitize(value string) string {
	return html.EscapeString(value)
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
