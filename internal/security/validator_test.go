package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputValidatorCheck(t *testing.T) {
	lenient := NewInputValidator(ValidationConfig{Enabled: true})
	strict := NewInputValidator(ValidationConfig{Enabled: true, StrictMode: true})

	tests := []struct {
		name    string
		input   string
		lenient Threat
		strict  Threat
	}{
		{"plain", "What is the capital of France?", "", ""},
		{"script", "<script>alert(1)</script>", ThreatXSS, ThreatXSS},
		{"multiline script", "<SCRIPT>\nalert(1)\n</script>", ThreatXSS, ThreatXSS},
		{"handler", `<img src=x onerror = "x">`, ThreatXSS, ThreatXSS},
		{"js url", "JavaScript:void(0)", ThreatXSS, ThreatXSS},
		{"iframe", "<iframe src=evil></iframe>", ThreatXSS, ThreatXSS},
		{"sql keyword", "select the best answer", "", ThreatSQLInjection},
		{"sql comment", "admin' --", "", ThreatSQLInjection},
		{"shell", "$(rm -rf /)", "", ThreatCommandInjection},
		{"backticks", "run `ls`", "", ThreatCommandInjection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threat, _, _ := lenient.Check(tt.input)
			assert.Equal(t, tt.lenient, threat, "lenient")
			threat, _, _ = strict.Check(tt.input)
			assert.Equal(t, tt.strict, threat, "strict")
		})
	}
}

func TestInputValidatorDisabled(t *testing.T) {
	v := NewInputValidator(ValidationConfig{})
	_, _, found := v.Check("<script>alert(1)</script>")
	assert.False(t, found)
}

func TestValidateStopsAtMaxErrors(t *testing.T) {
	v := NewInputValidator(ValidationConfig{Enabled: true, MaxErrors: 1})
	fields := map[string]string{
		"name":  "<script>x</script>",
		"bio":   "javascript:alert(1)",
		"email": "a@b.c",
	}
	got := v.Validate([]string{"email", "name", "bio"}, fields)
	assert.Equal(t, []Violation{{Field: "name", Threat: ThreatXSS, Level: LevelCritical}}, got)
	assert.Equal(t, "name: potential xss detected", got[0].Error())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", Sanitize("<b>hi</b>"))
}
