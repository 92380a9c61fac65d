// Package media wraps ffmpeg and ffprobe to turn an interview recording into
// the fixed set of mono 16kHz WAV clips the analysis pipeline expects: two
// reference clips followed by numbered interview segments.
package media
