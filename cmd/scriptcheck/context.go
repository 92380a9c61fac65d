package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"scriptcheck/internal/config"
	"scriptcheck/internal/ledger"
)

// errJobNotFound marks a 404 from the daemon's job endpoint.
var errJobNotFound = errors.New("interview not found")

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	httpClient *http.Client
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// fetchJob retrieves an interview's ledger document from the daemon API.
func (c *commandContext) fetchJob(ctx context.Context, interviewID string) (*ledger.InterviewJob, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://%s/api/v1/jobs/%s", cfg.Workflow.APIBind, interviewID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach daemon at %s: %w (is scriptcheckd running?)", cfg.Workflow.APIBind, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", errJobNotFound, interviewID)
	default:
		return nil, fmt.Errorf("daemon returned status %d for %s", resp.StatusCode, interviewID)
	}

	var job ledger.InterviewJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	return &job, nil
}

// printJSON writes v as indented JSON, for the --json output mode.
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
