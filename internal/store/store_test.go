package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/model"
)

type record struct {
	Items []string `json:"items"`
	Count int      `json:"count"`
}

// backendFactories returns one constructor per driver that can run without
// external services.
func backendFactories() map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		config.StoreDriverMemory: func(t *testing.T) Backend {
			return NewMemoryBackend()
		},
		config.StoreDriverFile: func(t *testing.T) Backend {
			b, err := NewFileBackend(filepath.Join(t.TempDir(), "nested", "store.json"))
			if err != nil {
				t.Fatalf("NewFileBackend: %v", err)
			}
			return b
		},
		config.StoreDriverSQLite: func(t *testing.T) Backend {
			b, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "store.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			t.Cleanup(func() { b.Close() })
			return b
		},
		config.StoreDriverRedis: func(t *testing.T) Backend {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedisBackend(client, "test:")
		},
	}
}

func newTestStore(t *testing.T, driver string, b Backend) (*Store, *observability.Metrics) {
	t.Helper()
	m := observability.InitMetrics(prometheus.NewRegistry())
	return New(driver, b, zap.NewNop(), WithMetrics(m)), m
}

func TestStore_drivers(t *testing.T) {
	for driver, factory := range backendFactories() {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestStore(t, driver, factory(t))

			if _, found, _ := Get[record](ctx, s, "missing"); found {
				t.Fatal("missing key reported as found")
			}

			want := record{Items: []string{"a", "b"}, Count: 2}
			if err := Set(ctx, s, "k1", want); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := Set(ctx, s, "k2", "second"); err != nil {
				t.Fatalf("Set: %v", err)
			}

			got, found, _ := Get[record](ctx, s, "k1")
			if !found {
				t.Fatal("k1 not found after Set")
			}
			if got.Count != 2 || len(got.Items) != 2 || got.Items[1] != "b" {
				t.Errorf("Get = %+v, want %+v", got, want)
			}

			want.Count = 3
			if err := Set(ctx, s, "k1", want); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if got, _, _ := Get[record](ctx, s, "k1"); got.Count != 3 {
				t.Errorf("Count after overwrite = %d, want 3", got.Count)
			}

			if err := s.Remove(ctx, "k1"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, found, _ := Get[record](ctx, s, "k1"); found {
				t.Error("k1 found after Remove")
			}
			if err := s.Remove(ctx, "k1"); err != nil {
				t.Errorf("Remove of absent key: %v", err)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if _, found, _ := Get[string](ctx, s, "k2"); found {
				t.Error("k2 found after Clear")
			}

			if err := s.HealthCheck(ctx); err != nil {
				t.Errorf("HealthCheck: %v", err)
			}
		})
	}
}

func TestStore_corruptValueIsAbsent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s, m := newTestStore(t, config.StoreDriverMemory, b)

	if err := b.Set(ctx, "favorites-storage", []byte(`{"favorites": [`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, found, err := Get[model.FavoriteStorage](ctx, s, "favorites-storage"); found || err != nil {
		t.Fatalf("corrupt value: found=%v err=%v, want absent", found, err)
	}
	if v := testutil.ToFloat64(m.StoreCorruptValuesTotal); v != 1 {
		t.Errorf("corrupt counter = %v, want 1", v)
	}
}

func TestStore_wrongShapeIsAbsent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s, _ := newTestStore(t, config.StoreDriverMemory, b)
	_ = b.Set(ctx, "k", []byte(`"just a string"`))

	got, found, _ := Get[record](ctx, s, "k")
	if found {
		t.Fatal("mismatched shape reported as found")
	}
	if got.Count != 0 || got.Items != nil {
		t.Errorf("Get returned non-zero value %+v", got)
	}
}

type failingBackend struct {
	*MemoryBackend
	err error
}

func (b failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b failingBackend) Set(context.Context, string, []byte) error         { return b.err }
func (b failingBackend) Remove(context.Context, string) error              { return b.err }
func (b failingBackend) Clear(context.Context) error                       { return b.err }

func getErr(ctx context.Context, s *Store, key string) error {
	_, _, err := Get[record](ctx, s, key)
	return err
}

func TestStore_failuresArePersistenceErrors(t *testing.T) {
	ctx := context.Background()
	diskFull := errors.New("disk full")
	s, m := newTestStore(t, "failing", failingBackend{MemoryBackend: NewMemoryBackend(), err: diskFull})

	checks := map[string]error{
		"get":    getErr(ctx, s, "k"),
		"set":    Set(ctx, s, "k", record{}),
		"remove": s.Remove(ctx, "k"),
		"clear":  s.Clear(ctx),
	}
	for op, err := range checks {
		var pe *model.PersistenceError
		if !errors.As(err, &pe) {
			t.Errorf("%s error = %v, want PersistenceError", op, err)
			continue
		}
		if pe.Operation != op {
			t.Errorf("%s: Operation = %q", op, pe.Operation)
		}
		if !errors.Is(err, diskFull) {
			t.Errorf("%s: cause not preserved: %v", op, err)
		}
		if v := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("failing", op, "error")); v != 1 {
			t.Errorf("%s error counter = %v, want 1", op, v)
		}
	}
}

func TestStore_unencodableValue(t *testing.T) {
	s, _ := newTestStore(t, config.StoreDriverMemory, NewMemoryBackend())

	err := Set(context.Background(), s, "k", map[string]any{"fn": func() {}})
	var pe *model.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want PersistenceError", err)
	}
}

func TestFileBackend_persistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	first, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if err := first.Set(ctx, "k", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	v, found, err := second.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Get found=%v err=%v", found, err)
	}
	if string(v) != `{"v":1}` {
		t.Errorf("value = %s", v)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the store file", len(entries))
	}
}

func TestFileBackend_corruptDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, _ := NewFileBackend(path)
	s, _ := newTestStore(t, config.StoreDriverFile, b)

	if _, found, err := Get[record](ctx, s, "k"); found || err != nil {
		t.Errorf("corrupt document: found=%v err=%v, want absent", found, err)
	}
	if err := Set(ctx, s, "k", record{Count: 1}); err != nil {
		t.Fatalf("Set over corrupt document: %v", err)
	}
	if got, found, _ := Get[record](ctx, s, "k"); !found || got.Count != 1 {
		t.Errorf("Get after rewrite = %+v found=%v", got, found)
	}
}

func TestFileBackend_unreadableDocumentIsAnError(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, _ := NewFileBackend(path)
	s, _ := newTestStore(t, config.StoreDriverFile, b)

	var pe *model.PersistenceError
	if _, found, err := Get[record](ctx, s, "k"); found || !errors.As(err, &pe) {
		t.Errorf("Get = found %v, err %v, want PersistenceError", found, err)
	}
	if err := Set(ctx, s, "k", record{Count: 1}); !errors.As(err, &pe) {
		t.Errorf("Set error = %v, want PersistenceError", err)
	}
}

func TestRedisBackend_clearIsPrefixScoped(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if err := mr.Set("other:keep", "1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b := NewRedisBackend(client, "pokerub:")
	_ = b.Set(ctx, "a", []byte("1"))
	_ = b.Set(ctx, "b", []byte("2"))

	if !mr.Exists("pokerub:a") {
		t.Fatal("prefix not applied to stored key")
	}
	if err := b.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mr.Exists("pokerub:a") || mr.Exists("pokerub:b") {
		t.Error("prefixed keys survived Clear")
	}
	if !mr.Exists("other:keep") {
		t.Error("Clear removed a key outside the prefix")
	}
}

func TestRedisBackend_unreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	s, _ := newTestStore(t, config.StoreDriverRedis, NewRedisBackend(client, "p:"))
	mr.Close()

	ctx := context.Background()
	var pe *model.PersistenceError
	if _, _, err := Get[record](ctx, s, "k"); !errors.As(err, &pe) {
		t.Errorf("Get error = %v, want PersistenceError", err)
	}
	if err := Set(ctx, s, "k", record{}); !errors.As(err, &pe) {
		t.Errorf("Set error = %v, want PersistenceError", err)
	}
	if err := s.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck should fail against a closed server")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{"memory", config.StoreConfig{Driver: config.StoreDriverMemory}, false},
		{"file", config.StoreConfig{Driver: config.StoreDriverFile, Path: filepath.Join(dir, "s.json")}, false},
		{"sqlite", config.StoreConfig{Driver: config.StoreDriverSQLite, Path: filepath.Join(dir, "s.db")}, false},
		{"redis without address", config.StoreConfig{Driver: config.StoreDriverRedis, AddrEnv: "POKERUB_TEST_UNSET_REDIS"}, true},
		{"postgres without dsn", config.StoreConfig{Driver: config.StoreDriverPostgres, DSNEnv: "POKERUB_TEST_UNSET_PG"}, true},
		{"unknown", config.StoreConfig{Driver: "leveldb"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			if s.Driver() != tt.cfg.Driver {
				t.Errorf("Driver() = %q, want %q", s.Driver(), tt.cfg.Driver)
			}
		})
	}
}

func TestOpen_redisFromEnvironment(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("POKERUB_TEST_REDIS_ADDR", mr.Addr())

	s, err := Open(context.Background(), config.StoreConfig{
		Driver:    config.StoreDriverRedis,
		AddrEnv:   "POKERUB_TEST_REDIS_ADDR",
		KeyPrefix: "pokerub:",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := Set(context.Background(), s, "favorites-storage", model.FavoriteStorage{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("pokerub:favorites-storage") {
		t.Error("key not written under configured prefix")
	}
}

func TestLikePrefix(t *testing.T) {
	if got := likePrefix(`a_b%c\`); got != `a\_b\%c\\%` {
		t.Errorf("likePrefix = %q", got)
	}
}
