package verdict

import (
	"math"
	"time"
)

// Segment-level classifications.
const (
	SegmentReading = "Reading"
	SegmentNatural = "Natural"
)

// Interview-level classifications.
const (
	FinalCheating    = "Cheating"
	FinalNonCheating = "Non-cheating"
)

// SegmentResult is the per-segment outcome: the segment's similarity to each
// reference clip and the classification derived from them. SegmentNo is
// 1-based and follows chronological position in the recording.
type SegmentResult struct {
	SegmentNo     int     `json:"segment_no" bson:"segment_no"`
	ReadingCosine float64 `json:"reading_cosine" bson:"reading_cosine"`
	NaturalCosine float64 `json:"natural_cosine" bson:"natural_cosine"`
	Verdict       string  `json:"verdict" bson:"verdict"`
	ProcessedAt   string  `json:"processed_at" bson:"processed_at"`
}

// InterviewResult is the final outcome persisted for a completed interview.
type InterviewResult struct {
	InterviewID           string          `json:"interview_id" bson:"interview_id"`
	FinalVerdict          string          `json:"final_verdict" bson:"final_verdict"`
	CheatingSegments      int             `json:"cheating_segments" bson:"cheating_segments"`
	TotalSegments         int             `json:"total_segments" bson:"total_segments"`
	JSONFilePath          string          `json:"json_file_path,omitempty" bson:"json_file_path,omitempty"`
	EmbeddingsFilePath    string          `json:"embeddings_file_path,omitempty" bson:"embeddings_file_path,omitempty"`
	ProcessedAt           string          `json:"processed_at" bson:"processed_at"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds" bson:"processing_time_seconds"`
	SegmentsDetails       []SegmentResult `json:"segments_details" bson:"segments_details"`
}

// Cosine returns the cosine similarity of two vectors, defined as 0 when
// either vector has zero norm or the dimensions disagree.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Classify compares a segment's similarity to the two reference clips. A
// segment reads as scripted only when it is strictly closer to the reading
// reference; an exact tie counts as natural speech.
func Classify(readingCosine, naturalCosine float64) string {
	if readingCosine > naturalCosine {
		return SegmentReading
	}
	return SegmentNatural
}

// Score builds the SegmentResult for one segment embedding against the two
// reference embeddings.
func Score(segmentNo int, segment, reading, natural []float64, at time.Time) SegmentResult {
	readingCosine := Cosine(segment, reading)
	naturalCosine := Cosine(segment, natural)
	return SegmentResult{
		SegmentNo:     segmentNo,
		ReadingCosine: readingCosine,
		NaturalCosine: naturalCosine,
		Verdict:       Classify(readingCosine, naturalCosine),
		ProcessedAt:   at.UTC().Format(time.RFC3339),
	}
}

// Aggregate derives the interview-level verdict from per-segment results.
// The interview is flagged when the fraction of Reading segments exceeds
// ratio; with ratio 0 a single Reading segment is enough. An interview with
// no segments is never flagged.
func Aggregate(interviewID string, segments []SegmentResult, ratio float64, at time.Time) InterviewResult {
	cheating := 0
	for _, segment := range segments {
		if segment.Verdict == SegmentReading {
			cheating++
		}
	}

	final := FinalNonCheating
	if len(segments) > 0 && float64(cheating) > ratio*float64(len(segments)) {
		final = FinalCheating
	}

	return InterviewResult{
		InterviewID:      interviewID,
		FinalVerdict:     final,
		CheatingSegments: cheating,
		TotalSegments:    len(segments),
		ProcessedAt:      at.UTC().Format(time.RFC3339),
		SegmentsDetails:  segments,
	}
}
