// Package prompt renders the instructions sent to LLM providers. The default
// catalog is embedded; a YAML file with the same shape can replace it.
package prompt
