package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"scriptcheck/internal/config"
	"scriptcheck/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, forceCPU bool) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Inference.Endpoint = server.URL
	cfg.Inference.ForceCPU = forceCPU

	client, err := NewClient(&cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestEmbedPreservesClipOrder(t *testing.T) {
	var received embedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float64{{1, 0}, {0, 1}, {0.5, 0.5}},
		})
	}, true)

	clips := [][]byte{[]byte("clip-a"), []byte("clip-b"), []byte("clip-c")}
	vectors, err := client.Embed(context.Background(), clips)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	if vectors[0][0] != 1 || vectors[2][1] != 0.5 {
		t.Fatalf("order not preserved: %v", vectors)
	}

	if !received.ForceCPU {
		t.Fatal("force_cpu flag not forwarded")
	}
	decoded, err := base64.StdEncoding.DecodeString(received.Clips[1])
	if err != nil || string(decoded) != "clip-b" {
		t.Fatalf("clip encoding wrong: %q %v", decoded, err)
	}
}

func TestEmbedServiceErrorIsInferenceKind(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(embedResponse{Error: "CUDA out of memory"})
	}, false)

	_, err := client.Embed(context.Background(), [][]byte{[]byte("clip")})
	if services.Classify(err) != services.KindInference {
		t.Fatalf("service failure classified %s (%v)", services.Classify(err), err)
	}
	if !services.Classify(err).Retryable() {
		t.Fatal("inference failures must stay retryable")
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1}}})
	}, false)

	_, err := client.Embed(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	if services.Classify(err) != services.KindInference {
		t.Fatalf("count mismatch classified %s", services.Classify(err))
	}
}

func TestEmbedUnreachableServiceIsTransient(t *testing.T) {
	cfg := config.Default()
	cfg.Inference.Endpoint = "http://127.0.0.1:1"
	cfg.Inference.TimeoutSeconds = 1
	client, err := NewClient(&cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Embed(context.Background(), [][]byte{[]byte("clip")})
	if services.Classify(err) != services.KindTransient {
		t.Fatalf("network failure classified %s", services.Classify(err))
	}
}

func TestEmbedRejectsEmptyBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}, false)

	_, err := client.Embed(context.Background(), nil)
	if services.Classify(err) != services.KindValidation {
		t.Fatalf("empty batch classified %s", services.Classify(err))
	}
}
