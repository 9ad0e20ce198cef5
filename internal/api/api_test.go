package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlegal/honoris/internal/classifier"
	"github.com/indexlegal/honoris/internal/config"
	"github.com/indexlegal/honoris/internal/evidence"
	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/pipeline"
	"github.com/indexlegal/honoris/internal/prompt"
	"github.com/indexlegal/honoris/pkg/gemini"
	"github.com/indexlegal/honoris/pkg/lawcrawler"
)

type countingSink struct {
	mu      sync.Mutex
	entries []model.Entry
}

func (s *countingSink) Persist(_ context.Context, e model.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func geminiAnswer(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(b)
}

const threatVerdict = `{"Frase_Original":"Sos un ladrón y te voy a matar","Categoria_Legal":"AMENAZA","Articulo_CR":"Artículo 195 del Código Penal","Penalidad_Estimada":"Prisión de seis meses a dos años","Detalles_Deteccion":"Anuncia un mal grave contra la persona."}`

type fixture struct {
	handler     http.Handler
	sink        *countingSink
	geminiCalls *atomic.Int32
	lawCalls    *atomic.Int32
}

// newFixture wires the real classifier, evidence lookup and pipeline against
// stub upstream services.
func newFixture(t *testing.T, geminiStatus int, geminiBody string, srvCfg config.ServerConfig) *fixture {
	t.Helper()
	f := &fixture{sink: &countingSink{}, geminiCalls: &atomic.Int32{}, lawCalls: &atomic.Int32{}}

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f.geminiCalls.Add(1)
		w.WriteHeader(geminiStatus)
		_, _ = w.Write([]byte(geminiBody))
	}))
	t.Cleanup(llm.Close)

	laws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lawCalls.Add(1)
		switch {
		case r.URL.Path == "/search":
			var results []string
			for i := 0; i < 7; i++ {
				results = append(results, fmt.Sprintf(`{"id":"ley-%d","q":%q}`, i, r.URL.Query().Get("q")))
			}
			fmt.Fprintf(w, `{"resultados":[%s]}`, strings.Join(results, ","))
		case r.URL.Path == "/law/4573":
			_, _ = w.Write([]byte(`{"id":"4573","titulo":"Código Penal"}`))
		case r.URL.Path == "/law/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(laws.Close)

	tmpl, err := prompt.Get("integrated")
	require.NoError(t, err)
	cls := classifier.NewGemini(gemini.NewClient("k", gemini.WithBaseURL(llm.URL)), "gemini-2.5-flash", tmpl)
	lawClient := lawcrawler.NewClient(lawcrawler.WithBaseURL(laws.URL))
	lookup := evidence.New(lawClient, nil, 0, 0)

	analyzer := pipeline.New(cls, model.SourceWeb, pipeline.WithEvidence(lookup), pipeline.WithSink(f.sink))
	f.handler = NewRouter(Deps{Analyzer: analyzer, Laws: lawClient, Config: srvCfg})
	return f
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func TestAnalyze_Infraction(t *testing.T) {
	f := newFixture(t, http.StatusOK, geminiAnswer(threatVerdict), config.ServerConfig{})

	rr := post(f.handler, `{"text":"Sos un ladrón y te voy a matar"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var got model.Analysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "AMENAZA", got.Category)
	assert.Equal(t, "Sos un ladrón y te voy a matar", got.OriginalText)
	require.Len(t, got.Evidence, model.MaxEvidence)
	assert.Contains(t, string(got.Evidence[0]), `"q":"AMENAZA"`)

	assert.Equal(t, 1, f.sink.count())
	assert.Equal(t, int32(1), f.geminiCalls.Load())
}

func TestAnalyze_EmptyText(t *testing.T) {
	f := newFixture(t, http.StatusOK, geminiAnswer(threatVerdict), config.ServerConfig{})

	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{}`, `not json`, ``} {
		rr := post(f.handler, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, msgTextRequired, decodeError(t, rr))
	}
	assert.Zero(t, f.geminiCalls.Load())
	assert.Zero(t, f.sink.count())
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError, `{"error":{"message":"internal model failure"}}`, config.ServerConfig{})

	rr := post(f.handler, `{"text":"Sos un ladrón"}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, msgProcessing, decodeError(t, rr))
	assert.NotContains(t, rr.Body.String(), "internal model failure")
	assert.Zero(t, f.sink.count())
	assert.Zero(t, f.lawCalls.Load())
}

func TestAnalyze_FencedAnswer(t *testing.T) {
	fenced := "```json\n" + threatVerdict + "\n```"
	f := newFixture(t, http.StatusOK, geminiAnswer(fenced), config.ServerConfig{})

	rr := post(f.handler, `{"text":"Sos un ladrón y te voy a matar"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var got model.Analysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "AMENAZA", got.Category)
}

func TestAnalyze_NeutralSkipsEvidence(t *testing.T) {
	neutral := `{"Categoria_Legal":"No infracción","Articulo_CR":"","Penalidad_Estimada":"","Detalles_Deteccion":""}`
	f := newFixture(t, http.StatusOK, geminiAnswer(neutral), config.ServerConfig{})

	rr := post(f.handler, `{"text":"Buenos días"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.Equal(t, model.NeutralCategory, raw["Categoria_Legal"])
	assert.Equal(t, model.NeutralRationale, raw["Detalles_Deteccion"])
	assert.Equal(t, []any{}, raw["Evidencia_Crawler"])
	assert.Zero(t, f.lawCalls.Load())
}

func TestAnalyze_Blocked(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, config.ServerConfig{})

	rr := post(f.handler, `{"text":"algo"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, msgProcessing, decodeError(t, rr))
}

func TestAnalyze_RateLimited(t *testing.T) {
	f := newFixture(t, http.StatusOK, geminiAnswer(threatVerdict), config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	first := post(f.handler, `{"text":"Sos un ladrón"}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := post(f.handler, `{"text":"Sos un ladrón"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, int32(1), f.geminiCalls.Load())
}

func TestLaw_Proxy(t *testing.T) {
	f := newFixture(t, http.StatusOK, geminiAnswer(threatVerdict), config.ServerConfig{})

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "found", path: "/api/law/4573", status: http.StatusOK, body: `{"id":"4573","titulo":"Código Penal"}`},
		{name: "not_found", path: "/api/law/nope", status: http.StatusNotFound, body: `{"error":"Ley no encontrada"}`},
		{name: "upstream_error", path: "/api/law/broken", status: http.StatusBadGateway, body: `{"error":"Error consultando la ley."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rr.Code)
			assert.JSONEq(t, tt.body, rr.Body.String())
		})
	}
}

func TestLaw_TransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	h := NewRouter(Deps{Laws: lawcrawler.NewClient(lawcrawler.WithBaseURL(url))})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/law/1", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestLaw_Disabled(t *testing.T) {
	h := NewRouter(Deps{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/law/1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealth(t *testing.T) {
	h := NewRouter(Deps{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestStaticAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Honoris</h1>"), 0o644))

	h := NewRouter(Deps{Config: config.ServerConfig{StaticDir: dir}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Honoris")
}

func TestCORS(t *testing.T) {
	h := NewRouter(Deps{Config: config.ServerConfig{CORSOrigins: []string{"*"}}})

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://indexlegal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

type stalledAnalyzer struct{}

func (stalledAnalyzer) Analyze(ctx context.Context, _ string) (*model.Analysis, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAnalyze_RequestDeadline(t *testing.T) {
	h := NewRouter(Deps{Analyzer: stalledAnalyzer{}, Config: config.ServerConfig{RequestTimeoutSecs: 1}})

	rr := post(h, `{"text":"Sos un ladrón"}`)
	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
	assert.Equal(t, msgTimeout, decodeError(t, rr))
}

func TestErrorStatus(t *testing.T) {
	status, msg := errorStatus(context.Background(), context.DeadlineExceeded)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, msgProcessing, msg)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	status, msg = errorStatus(ctx, context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, msgTimeout, msg)
}
