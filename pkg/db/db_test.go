package db

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
)

func samplePodcast(id string) *domain.Podcast {
	return &domain.Podcast{
		ID:         id,
		Title:      "Why Go Channels Matter",
		SourceURL:  "https://example.com/channels",
		SourceText: "Channels are typed conduits.",
		Dialogues: []domain.DialogueLine{
			{ID: id + "-1", Host: "host1", Content: "Hello there"},
			{ID: id + "-2", Host: "host2", Content: "Hi back"},
		},
	}
}

func TestSQLPodcastStore_NotConnected(t *testing.T) {
	store := NewSQLPodcastStore(NewPostgresClient(PostgresConfig{}))

	if err := store.Save(context.Background(), samplePodcast("p1")); err == nil {
		t.Error("Expected error saving without a connection")
	}
	if _, err := store.Get(context.Background(), "p1"); err == nil {
		t.Error("Expected error reading without a connection")
	}
}

func TestPostgresClient_RequiresDSN(t *testing.T) {
	if err := NewPostgresClient(PostgresConfig{}).Connect(context.Background()); err == nil {
		t.Error("Expected error for empty DSN")
	}
}

func TestSupabaseClient_RequiresCredentials(t *testing.T) {
	if err := NewSupabaseClient(SupabaseConfig{}).Connect(context.Background()); err == nil {
		t.Error("Expected error with neither connection string nor URL+key")
	}
	if _, err := NewSupabasePodcastStore(nil); err == nil {
		t.Error("Expected error for nil client")
	}
}

func TestSupabaseClient_ConnectionString(t *testing.T) {
	c := NewSupabaseClient(SupabaseConfig{SupabaseURL: "https://abcdefgh.supabase.co", Password: "p@ss word"})
	got, err := c.connectionString()
	if err != nil {
		t.Fatalf("connectionString failed: %v", err)
	}
	if !strings.Contains(got, "@db.abcdefgh.supabase.co:5432/postgres") {
		t.Errorf("Unexpected host in %q", got)
	}
	if !strings.Contains(got, "p%40ss%20word") {
		t.Errorf("Expected escaped password in %q", got)
	}
	if !strings.HasSuffix(got, "?sslmode=require") {
		t.Errorf("Expected sslmode=require in %q", got)
	}

	explicit := NewSupabaseClient(SupabaseConfig{ConnectionString: "postgres://u@h/db", Password: "ignored"})
	if got, _ := explicit.connectionString(); got != "postgres://u@h/db" {
		t.Errorf("Explicit connection string should win, got %q", got)
	}

	if got, err := NewSupabaseClient(SupabaseConfig{SupabaseURL: "https://x.supabase.co"}).connectionString(); err != nil || got != "" {
		t.Errorf("No password should mean no direct DB, got %q, %v", got, err)
	}
	if _, err := NewSupabaseClient(SupabaseConfig{SupabaseURL: "https://localhost", Password: "p"}).connectionString(); err == nil {
		t.Error("Expected error for a URL without a project ref")
	}
}

func TestWithConnParams(t *testing.T) {
	tests := []struct {
		name    string
		connStr string
		want    string
	}{
		{"url adds missing", "postgres://h/db?sslmode=require", "postgres://h/db?application_name=tingfm&sslmode=require"},
		{"url keeps existing", "postgres://h/db?application_name=other", "postgres://h/db?application_name=other"},
		{"keyword adds missing", "host=h dbname=db", "host=h dbname=db application_name=tingfm"},
		{"keyword keeps existing", "host=h application_name=other", "host=h application_name=other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withConnParams(tt.connStr, map[string]string{"application_name": "tingfm"}); got != tt.want {
				t.Errorf("withConnParams(%q) = %q, want %q", tt.connStr, got, tt.want)
			}
		})
	}
}

func TestSupabaseClient_StorageOnly(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	// A password is set but must never be used: nothing dials Postgres.
	c := NewSupabaseClient(SupabaseConfig{
		SupabaseURL: srv.URL,
		SupabaseKey: "test-key",
		Password:    "secret",
		StorageOnly: true,
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if c.Mode() != ModeStorage {
		t.Errorf("Mode() = %q, want %q", c.Mode(), ModeStorage)
	}
	if c.HasDirectDB() || c.DB() != nil {
		t.Error("Storage-only client should not open a database")
	}
	if c.SDK() == nil || c.SDK().Storage == nil {
		t.Error("Storage-only client should expose the storage SDK")
	}
	if c.FallbackReason() != nil {
		t.Errorf("Unexpected fallback reason: %v", c.FallbackReason())
	}
	if _, err := NewSupabasePodcastStore(c); err == nil {
		t.Error("Expected podcast store to refuse a storage-only client")
	}
}

func TestSupabaseClient_StorageOnlyNeedsKey(t *testing.T) {
	c := NewSupabaseClient(SupabaseConfig{
		ConnectionString: "postgres://u@h/db",
		SupabaseURL:      "https://abcdefgh.supabase.co",
		StorageOnly:      true,
	})
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Expected error for storage-only without an API key")
	}
	if c.Mode() != "" {
		t.Errorf("Mode() = %q after failed Connect, want empty", c.Mode())
	}
}

// restServer fakes the PostgREST podcasts endpoint.
type restServer struct {
	rows     map[string]domain.Podcast
	lastBody string
	methods  []string
}

func (s *restServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/podcasts") {
		http.NotFound(w, r)
		return
	}
	s.methods = append(s.methods, r.Method)
	body, _ := io.ReadAll(r.Body)
	s.lastBody = string(body)
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodPost:
		var p domain.Podcast
		if err := json.Unmarshal(body, &p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.rows[p.ID] = p
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		out := []domain.Podcast{}
		if p, ok := s.rows[id]; ok {
			out = append(out, p)
		}
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPatch:
		out := []domain.Podcast{}
		if p, ok := s.rows[id]; ok {
			var update struct {
				AudioURL string `json:"audio_url"`
			}
			_ = json.Unmarshal(body, &update)
			p.AudioURL = update.AudioURL
			s.rows[id] = p
			out = append(out, p)
		}
		_ = json.NewEncoder(w).Encode(out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newRESTStore(t *testing.T) (*SupabasePodcastStore, *restServer) {
	t.Helper()
	fake := &restServer{rows: make(map[string]domain.Podcast)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := NewSupabaseClient(SupabaseConfig{SupabaseURL: srv.URL, SupabaseKey: "test-key"})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if client.HasDirectDB() || client.Mode() != ModeREST {
		t.Fatalf("Expected REST API mode without a password, got %q", client.Mode())
	}
	if client.FallbackReason() != nil {
		t.Fatalf("No direct connection was requested, got fallback %v", client.FallbackReason())
	}

	store, err := NewSupabasePodcastStore(client)
	if err != nil {
		t.Fatalf("NewSupabasePodcastStore failed: %v", err)
	}
	return store, fake
}

func TestSupabasePodcastStore_REST(t *testing.T) {
	store, fake := newRESTStore(t)
	ctx := context.Background()

	p := samplePodcast("p1")
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("Save should stamp timestamps")
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != p.Title || len(got.Dialogues) != 2 || got.Dialogues[1].Content != "Hi back" {
		t.Errorf("Unexpected podcast: %+v", got)
	}

	if err := store.UpdateAudioURL(ctx, "p1", "https://cdn.example.com/merged.mp3"); err != nil {
		t.Fatalf("UpdateAudioURL failed: %v", err)
	}
	if fake.rows["p1"].AudioURL != "https://cdn.example.com/merged.mp3" {
		t.Errorf("Audio URL not updated: %+v", fake.rows["p1"])
	}
}

func TestSupabasePodcastStore_RESTNotFound(t *testing.T) {
	store, _ := newRESTStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrPodcastNotFound) {
		t.Errorf("Expected ErrPodcastNotFound from Get, got %v", err)
	}
	if err := store.UpdateAudioURL(ctx, "missing", "https://cdn.example.com/x.mp3"); !errors.Is(err, ErrPodcastNotFound) {
		t.Errorf("Expected ErrPodcastNotFound from UpdateAudioURL, got %v", err)
	}
}

// storeRoundTrip exercises a live backend.
func storeRoundTrip(t *testing.T, store PodcastStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id := "test-" + time.Now().Format("20060102150405.000000000")
	if err := store.Save(ctx, samplePodcast(id)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.UpdateAudioURL(ctx, id, "https://cdn.example.com/"+id+".mp3"); err != nil {
		t.Fatalf("UpdateAudioURL failed: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AudioURL != "https://cdn.example.com/"+id+".mp3" {
		t.Errorf("Expected updated audio URL, got %q", got.AudioURL)
	}
	if len(got.Dialogues) != 2 {
		t.Errorf("Expected 2 dialogues, got %d", len(got.Dialogues))
	}

	if err := store.UpdateAudioURL(ctx, id+"-missing", "x"); !errors.Is(err, ErrPodcastNotFound) {
		t.Errorf("Expected ErrPodcastNotFound, got %v", err)
	}
}

func TestSQLPodcastStore_Integration(t *testing.T) {
	dsn := os.Getenv("TINGFM_TEST_POSTGRES_DSN")
	if testing.Short() || dsn == "" {
		t.Skip("Skipping integration test: set TINGFM_TEST_POSTGRES_DSN")
	}

	client := NewPostgresClient(PostgresConfig{DSN: dsn})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	storeRoundTrip(t, NewSQLPodcastStore(client))
}

func TestMongoClient_Integration(t *testing.T) {
	uri := os.Getenv("TINGFM_TEST_MONGO_URI")
	if testing.Short() || uri == "" {
		t.Skip("Skipping integration test: set TINGFM_TEST_MONGO_URI")
	}

	client := NewMongoClient(uri, "tingfm_test", "podcasts")
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close(context.Background())

	storeRoundTrip(t, client)
}
