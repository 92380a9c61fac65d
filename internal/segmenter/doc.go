// Package segmenter implements the first pipeline stage: turning an uploaded
// interview recording into reference and segment audio clips in object
// storage, then announcing them on the audio-ready queue.
package segmenter
