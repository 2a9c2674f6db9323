// Package config defines the configuration model shared by the CLI, the
// HTTP facade and the provisioning packages.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables, then CLI flags or request fields. [Config.Validate]
// runs last and fails fast on missing credentials; nothing secret is ever
// compiled in.
package config
