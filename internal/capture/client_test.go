package capture_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/courts"
	"github.com/jonesrussell/courtcapture/internal/credentials"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

func newPortalServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *courts.Config) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &courts.Config{
		Code:       "trt3",
		Instance:   domain.InstanceFirst,
		BaseURL:    server.URL,
		LoginPath:  "/login",
		TotalsPath: "/totalizador",
		ListPaths: map[string]string{
			string(domain.KindGeneralDocket): "/processos",
		},
		DocumentPath: "/documentos",
	}
	return server, cfg
}

func newTestClient() *capture.Client {
	return capture.NewClient(capture.ClientConfig{
		RequestDelay:   time.Millisecond,
		RequestTimeout: 5 * time.Second,
		UserAgent:      "courtcapture-test",
	}, logger.NewNoOp())
}

func TestClientAuthenticate(t *testing.T) {
	var gotBody map[string]string
	_, cfg := newPortalServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	})

	session, err := newTestClient().Authenticate(context.Background(), cfg, &credentials.Decrypted{
		Login: "12345678900",
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "12345678900", gotBody["login"])
}

func TestClientAuthenticateRejected(t *testing.T) {
	_, cfg := newPortalServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"mensagem": "senha expirada"})
	})

	_, err := newTestClient().Authenticate(context.Background(), cfg, &credentials.Decrypted{})
	require.Error(t, err)
	assert.Equal(t, domain.CodeAuthError, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "senha expirada")
}

func TestClientFetchPage(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	_, cfg := newPortalServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
		case "/processos":
			gotQuery = r.URL.Query()
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]any{
				"resultado":      []map[string]any{{"numeroProcesso": "0001"}},
				"totalRegistros": 42,
				"qtdPaginas":     3,
			})
		default:
			http.NotFound(w, r)
		}
	})

	client := newTestClient()
	session, err := client.Authenticate(context.Background(), cfg, &credentials.Decrypted{})
	require.NoError(t, err)

	page, err := client.FetchPage(
		context.Background(), session, domain.KindGeneralDocket, 2, 50,
		url.Values{"situacao": []string{"arquivado"}},
	)
	require.NoError(t, err)

	assert.Len(t, page.Items, 1)
	assert.Equal(t, 42, page.Total)
	assert.Equal(t, 3, page.PageCount)
	assert.Equal(t, "2", gotQuery.Get("pagina"))
	assert.Equal(t, "50", gotQuery.Get("tamanhoPagina"))
	assert.Equal(t, "arquivado", gotQuery.Get("situacao"))
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClientFetchTotals(t *testing.T) {
	_, cfg := newPortalServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
		case "/totalizador":
			json.NewEncoder(w).Encode(map[string]int{"quantidadeProcessos": 17})
		default:
			http.NotFound(w, r)
		}
	})

	client := newTestClient()
	session, err := client.Authenticate(context.Background(), cfg, &credentials.Decrypted{})
	require.NoError(t, err)

	total, err := client.FetchTotals(context.Background(), session, nil)
	require.NoError(t, err)
	assert.Equal(t, 17, total)
}

func TestClientDownloadDocument(t *testing.T) {
	_, cfg := newPortalServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
		case "/documentos/99":
			w.Write([]byte("%PDF-1.7"))
		default:
			http.NotFound(w, r)
		}
	})

	client := newTestClient()
	session, err := client.Authenticate(context.Background(), cfg, &credentials.Decrypted{})
	require.NoError(t, err)

	data, err := client.DownloadDocument(context.Background(), session, 99)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}
