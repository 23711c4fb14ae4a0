// Package config provides webpilot configuration management.
//
// Configuration is loaded with a defaults → YAML file → environment
// variable precedence. Environment overrides follow the pattern
// WEBPILOT_<SECTION>_<FIELD>, with a bare GEMINI_API_KEY fallback for
// the model credential.
package config
