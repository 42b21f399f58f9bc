package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/motifs/internal/queue"
	mid "github.com/OFFIS-RIT/motifs/internal/server/middleware"
	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/flavor"
	"github.com/OFFIS-RIT/motifs/pkg/motif"
	"github.com/OFFIS-RIT/motifs/pkg/role"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

const masterKey = "master-secret"

var signingKey = []byte("test-signing-key")

type fakeStore struct {
	store.Storage

	graph   *session.Graph
	similar []store.SimilarSession
	motifs  *store.MotifMatches
	err     error
}

func (f *fakeStore) QuerySessionGraph(ctx context.Context, unitID int64, isTrue bool) (*session.Graph, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.graph == nil || f.graph.UnitID != unitID || f.graph.IsTrueGraph != isTrue {
		return nil, store.ErrNotFound
	}
	return f.graph, nil
}

func (f *fakeStore) QuerySimilarSessions(ctx context.Context, unitID int64, limit int) ([]store.SimilarSession, error) {
	if f.graph == nil || f.graph.UnitID != unitID {
		return nil, store.ErrNotFound
	}
	return f.similar[:min(limit, len(f.similar))], nil
}

func (f *fakeStore) QueryMotifsByHash(ctx context.Context, hash string) (*store.MotifMatches, error) {
	if f.motifs != nil && len(f.motifs.Plain) > 0 && f.motifs.Plain[0].Hash == hash {
		return f.motifs, nil
	}
	return &store.MotifMatches{}, nil
}

type fakePublisher struct {
	keys   []string
	bodies [][]byte
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, msg.Body)
	return nil
}

func testGraph(t *testing.T) *session.Graph {
	t.Helper()
	s := common.Session{
		UnitID:        42,
		PostedAt:      time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		OwnerUserName: "owner",
		TopicVector:   []int{0, 3, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	var events []*role.Event
	for _, name := range []string{"b1", "b2"} {
		ev, err := role.NewEvent(s.UnitID, uuid.New(), name, role.Bully, 2, nil)
		require.NoError(t, err)
		events = append(events, ev)
	}
	g, err := session.Build(s, events, true)
	require.NoError(t, err)
	return g
}

type harness struct {
	st  *fakeStore
	pub *fakePublisher
	srv http.Handler
}

func newHarness(t *testing.T) *harness {
	g := testGraph(t)
	plains, err := motif.Discover(g, 3)
	require.NoError(t, err)
	flavored, err := flavor.FlavorAll(plains)
	require.NoError(t, err)

	h := &harness{
		st: &fakeStore{
			graph:   g,
			similar: []store.SimilarSession{{UnitID: 7, Distance: 1}, {UnitID: 8, Distance: 2.5}},
			motifs:  &store.MotifMatches{Plain: plains, Flavored: flavored},
		},
		pub: &fakePublisher{},
	}
	h.srv = New(&mid.App{
		Store:        h.st,
		Queue:        h.pub,
		MasterAPIKey: masterKey,
		Keyfunc: func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return signingKey, nil
		},
	})
	return h
}

func (h *harness) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestAuth(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/sessions/42/graph", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/sessions/42/graph", "wrong", "").Code)

	viewer := signedToken(t, jwt.MapClaims{"sub": "u1", "permissions": []string{mid.PermGraphView}})
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/sessions/42/graph", viewer, "").Code)
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/jobs/mine", viewer, `{}`).Code)

	admin := signedToken(t, jwt.MapClaims{"id": float64(3), "role": "admin"})
	require.Equal(t, http.StatusAccepted, h.do(t, http.MethodPost, "/api/jobs/mine", admin, `{}`).Code)

	expired := signedToken(t, jwt.MapClaims{"sub": "u1", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()})
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/sessions/42/graph", expired, "").Code)

	anonymous := signedToken(t, jwt.MapClaims{"role": "admin"})
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/sessions/42/graph", anonymous, "").Code)
}

func TestGetSessionGraph(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/sessions/42/graph", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		UnitID      int64           `json:"unit_id"`
		IsTrueGraph bool            `json:"is_true_graph"`
		Graph       json.RawMessage `json:"graph"`
		Summary     session.Summary `json:"summary"`
		TopTopic    string          `json:"most_frequent_topic"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, int64(42), res.UnitID)
	require.True(t, res.IsTrueGraph)
	require.NotEmpty(t, res.Graph)
	require.Equal(t, 3, res.Summary.NumNodes)
	require.Equal(t, 2, res.Summary.NumBullies)
	require.Equal(t, "Gender", res.TopTopic)

	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/sessions/42/graph?shuffled=true", masterKey, "").Code)
	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/sessions/9/graph", masterKey, "").Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/sessions/abc/graph", masterKey, "").Code)

	h.st.err = errors.New("connection refused")
	require.Equal(t, http.StatusInternalServerError, h.do(t, http.MethodGet, "/api/sessions/42/graph", masterKey, "").Code)
}

func TestGetSimilarSessions(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/sessions/42/similar?limit=1", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res []store.SimilarSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res, 1)
	require.Equal(t, int64(7), res[0].UnitID)

	rec = h.do(t, http.MethodGet, "/api/sessions/42/similar", masterKey, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res, 2)

	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/sessions/42/similar?limit=500", masterKey, "").Code)
	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/sessions/1/similar", masterKey, "").Code)
}

func TestGetMotifs(t *testing.T) {
	h := newHarness(t)
	hash := h.st.motifs.Plain[0].Hash

	rec := h.do(t, http.MethodGet, "/api/motifs/"+hash, masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Hash     string            `json:"motif_hash"`
		Plain    []json.RawMessage `json:"plain"`
		Flavored []json.RawMessage `json:"flavored"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, hash, res.Hash)
	require.Len(t, res.Plain, 1)
	require.Len(t, res.Flavored, 6)

	require.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/motifs/00ff", masterKey, "").Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/motifs/not-hex", masterKey, "").Code)
}

func TestPostJobs(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/jobs/build", masterKey, `{"shuffle":true,"max_log_delta":6}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var res struct {
		Queue         string `json:"queue"`
		CorrelationID string `json:"correlation_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, queue.BuildQueue, res.Queue)
	require.NotEmpty(t, res.CorrelationID)

	msg, err := queue.DecodeBuildJob(h.pub.bodies[0])
	require.NoError(t, err)
	require.True(t, msg.Shuffle)
	require.Equal(t, res.CorrelationID, msg.CorrelationID)

	rec = h.do(t, http.MethodPost, "/api/jobs/mine", masterKey, `{"sizes":[3],"cut_probabilities":{"3":[0,0.2,0.2]}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{queue.BuildQueue, queue.MineQueue}, h.pub.keys)

	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/jobs/mine", masterKey, `{"sizes":[5]}`).Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/jobs/build", masterKey, `{"max_log_delta":0}`).Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/jobs/build", masterKey, `[`).Code)
	require.Len(t, h.pub.keys, 2)
}
