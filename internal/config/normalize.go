package config

import "strings"

// normalize expands filesystem paths and canonicalizes prefix fields so the
// rest of the system can rely on their shape.
func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Storage.AudioPrefix = normalizePrefix(c.Storage.AudioPrefix)
	c.Storage.EmbeddingsPrefix = normalizePrefix(c.Storage.EmbeddingsPrefix)
	c.Storage.ResultsPrefix = normalizePrefix(c.Storage.ResultsPrefix)

	c.Inference.Endpoint = strings.TrimRight(strings.TrimSpace(c.Inference.Endpoint), "/")

	for i, stage := range c.Workflow.Stages {
		c.Workflow.Stages[i] = strings.ToLower(strings.TrimSpace(stage))
	}
	return nil
}

// normalizePrefix guarantees a storage prefix ends with exactly one slash and
// never starts with one. Object keys are joined by plain concatenation.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
