package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scriptcheck/internal/broker"
	"scriptcheck/internal/logging"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var audioPrefix string

	cmd := &cobra.Command{
		Use:   "submit <interview-id> [video-object-key]",
		Short: "Queue an interview recording for analysis",
		Long: "Publishes a video-ready notification for a recording already present in object\n" +
			"storage. The daemon picks the message up and drives the interview through\n" +
			"segmentation and verdict analysis.\n\n" +
			"With --audio-prefix the video stage is skipped: an audio-ready notification is\n" +
			"published instead, pointing the verdict stage at already-extracted clips.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			interviewID := strings.TrimSpace(args[0])
			if interviewID == "" {
				return fmt.Errorf("interview id must not be empty")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var queueName string
			var message any
			switch {
			case strings.TrimSpace(audioPrefix) != "":
				if len(args) == 2 {
					return fmt.Errorf("--audio-prefix and a video object key are mutually exclusive")
				}
				queueName = cfg.Broker.AudioReadyQueue
				message = broker.AudioReadyMessage{InterviewID: interviewID, GCSAudioPrefix: strings.TrimSpace(audioPrefix)}
			case len(args) == 2 && strings.TrimSpace(args[1]) != "":
				queueName = cfg.Broker.VideoReadyQueue
				message = broker.VideoReadyMessage{InterviewID: interviewID, Path: strings.TrimSpace(args[1])}
			default:
				return fmt.Errorf("provide a video object key or --audio-prefix")
			}

			queue, err := broker.New(cfg, logging.NewNop())
			if err != nil {
				return fmt.Errorf("connect broker: %w", err)
			}
			defer queue.Close() //nolint:errcheck

			publishCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := queue.Publish(publishCtx, queueName, message); err != nil {
				return fmt.Errorf("publish to %s: %w", queueName, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Queued interview %s on %s\n", interviewID, queueName)
			return nil
		},
	}

	cmd.Flags().StringVar(&audioPrefix, "audio-prefix", "", "Publish an audio-ready message for clips already under this storage prefix")
	return cmd
}
