package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/platform/ctxutil"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/platform/pinecone"
)

// Bookkeeping payload keys. They are stripped from match metadata.
const (
	payloadNamespaceKey = "_pi_namespace"
	payloadVectorIDKey  = "_pi_vector_id"
	maxBodyBytes        = 64 << 10
)

// Evidence vector ids ("feedback:<uuid>", "okr:<uuid>") are not valid qdrant point ids, so each is
// mapped to a stable uuid inside its namespace.
var pointIDSpace = uuid.MustParse("0f1705d1-2c3f-4e40-b2f4-f855f7d3c8e8")

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type searchRequest struct {
	Vector      []float32    `json:"vector"`
	Limit       int          `json:"limit"`
	WithPayload bool         `json:"with_payload"`
	Filter      searchFilter `json:"filter"`
}

type searchHit struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type deleteRequest struct {
	Points []string `json:"points"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type vectorStore struct {
	log      *logger.Logger
	cfg      Config
	distance string
	http     *http.Client
}

func NewVectorStore(log *logger.Logger, cfg Config) (pinecone.VectorStore, error) {
	s, err := newVectorStore(log, cfg, nil)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newVectorStore(log *logger.Logger, cfg Config, hc *http.Client) (*vectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	s := &vectorStore{log: log.With("service", "QdrantVectorStore"), cfg: cfg, http: hc}

	var info collectionInfo
	if err := s.do(context.Background(), "ready_check", http.MethodGet, "", nil, &info); err != nil {
		return nil, fmt.Errorf("qdrant ready check failed: %w", err)
	}
	if size := info.Config.Params.Vectors.Size; size != 0 && size != cfg.VectorDim {
		return nil, opErr("ready_check", OperationErrorValidation,
			fmt.Sprintf("collection %q vector size mismatch: want=%d got=%d", cfg.Collection, cfg.VectorDim, size), nil)
	}
	s.distance = strings.ToLower(strings.TrimSpace(info.Config.Params.Vectors.Distance))

	s.log.Info("Qdrant vector store selected",
		"url", cfg.URL,
		"collection", cfg.Collection,
		"namespace_prefix", cfg.NamespacePrefix,
		"vector_dim", cfg.VectorDim,
		"distance", s.distance,
	)
	return s, nil
}

func (s *vectorStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	const op = "upsert"
	if len(vectors) == 0 {
		return nil
	}
	ns := s.qualify(namespace)
	req := upsertRequest{Points: make([]point, 0, len(vectors))}
	for _, v := range vectors {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if err := s.checkDim(op, id, v.Values); err != nil {
			return err
		}
		payload := make(map[string]any, len(v.Metadata)+2)
		for k, val := range v.Metadata {
			payload[k] = val
		}
		payload[payloadNamespaceKey] = ns
		payload[payloadVectorIDKey] = id
		req.Points = append(req.Points, point{ID: pointID(ns, id), Vector: v.Values, Payload: payload})
	}
	return s.do(ctx, op, http.MethodPut, "/points?wait=true", req, nil)
}

func (s *vectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.VectorMatch, error) {
	const op = "query"
	if err := s.checkDim(op, "query", q); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	ns := s.qualify(namespace)
	f, err := buildFilter(ns, filter)
	if err != nil {
		s.log.Warn("qdrant query filter unsupported", "namespace", ns, "error", err)
		return nil, err
	}

	var hits []searchHit
	req := searchRequest{Vector: q, Limit: topK, WithPayload: true, Filter: f}
	if err := s.do(ctx, op, http.MethodPost, "/points/search", req, &hits); err != nil {
		return nil, err
	}

	out := make([]pinecone.VectorMatch, 0, len(hits))
	for _, h := range hits {
		id, _ := h.Payload[payloadVectorIDKey].(string)
		if strings.TrimSpace(id) == "" {
			continue
		}
		meta := make(map[string]any, len(h.Payload))
		for k, v := range h.Payload {
			if k != payloadNamespaceKey && k != payloadVectorIDKey {
				meta[k] = v
			}
		}
		out = append(out, pinecone.VectorMatch{ID: id, Score: s.similarity(h.Score), Metadata: meta})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *vectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	ns := s.qualify(namespace)
	seen := make(map[string]bool, len(ids))
	req := deleteRequest{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		req.Points = append(req.Points, pointID(ns, id))
	}
	if len(req.Points) == 0 {
		return nil
	}
	return s.do(ctx, "delete", http.MethodPost, "/points/delete?wait=true", req, nil)
}

func (s *vectorStore) checkDim(op, id string, values []float32) error {
	if len(values) == 0 {
		return opErr(op, OperationErrorValidation, fmt.Sprintf("%s has no values", id), nil)
	}
	if len(values) != s.cfg.VectorDim {
		return opErr(op, OperationErrorValidation,
			fmt.Sprintf("%s dimension mismatch: want=%d got=%d", id, s.cfg.VectorDim, len(values)), nil)
	}
	return nil
}

// do sends one request against the collection and decodes the envelope's result into out.
func (s *vectorStore) do(ctx context.Context, op, method, suffix string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return opErr(op, OperationErrorValidation, "encode request", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.cfg.URL+"/collections/"+s.cfg.Collection+suffix, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return transportErr(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > 512 {
			raw = raw[:512]
		}
		return &OperationError{Code: OperationErrorUpstream, Operation: op, StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode envelope", err)
	}
	if msg := envelopeError(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorUpstream, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode result", err)
	}
	return nil
}

// envelopeError reads qdrant's status field, which is "ok" or {"error": "..."}.
func envelopeError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var status string
	if json.Unmarshal(raw, &status) == nil {
		if strings.EqualFold(status, "ok") {
			return ""
		}
		return "status " + status
	}
	var obj struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Error != "" {
		return obj.Error
	}
	return "status " + string(raw)
}

func (s *vectorStore) qualify(namespace string) string {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return s.cfg.NamespacePrefix
	}
	return s.cfg.NamespacePrefix + ":" + ns
}

// similarity keeps evidence scores "higher is better" for distance-based collections.
func (s *vectorStore) similarity(score float64) float64 {
	if s.distance == "euclid" || s.distance == "manhattan" {
		if score < 0 {
			score = -score
		}
		return 1 / (1 + score)
	}
	return score
}

func pointID(qualifiedNS, vectorID string) string {
	return uuid.NewSHA1(pointIDSpace, []byte(qualifiedNS+"|"+vectorID)).String()
}
