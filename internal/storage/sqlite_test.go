package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_ReopenKeepsVersion(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.Create("s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s1.Append("s1", domain.Message{Role: domain.RoleUser, Content: "persisted"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	v1 := s1.SchemaVersion()
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	if v1 == 0 || s2.SchemaVersion() != v1 {
		t.Errorf("schema version changed across reopen: %d -> %d", v1, s2.SchemaVersion())
	}
	msgs, err := s2.List("s1")
	if err != nil {
		t.Fatalf("List after reopen: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "persisted" {
		t.Errorf("log not preserved across reopen: %+v", msgs)
	}
}

func TestSchemaVersionIsLatestMigration(t *testing.T) {
	s := openTestStore(t)

	all, err := migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("expected at least one migration")
	}
	if got, want := s.SchemaVersion(), all[len(all)-1].version; got != want {
		t.Errorf("SchemaVersion() = %d, want %d", got, want)
	}
}

// TestOpen_RejectsForeignSchema opens a database whose messages table was
// created by something else.
func TestOpen_RejectsForeignSchema(t *testing.T) {
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, dbFile))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	for _, stmt := range []string{
		"CREATE TABLE chat_sessions (id TEXT PRIMARY KEY, created_at DATETIME)",
		"CREATE TABLE messages (id TEXT PRIMARY KEY, body TEXT)",
		"CREATE TABLE favorites (precedent_id TEXT PRIMARY KEY, precedent_json TEXT, created_at DATETIME)",
		"PRAGMA user_version = 1",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	db.Close()

	s, err := Open(dir)
	if err == nil {
		s.Close()
		t.Fatal("expected Open to reject an incompatible messages table")
	}
	if !strings.Contains(err.Error(), "table messages") || !strings.Contains(err.Error(), "seq") {
		t.Errorf("error should name the table and a missing column, got %v", err)
	}
}

// TestIndexesExist verifies that the indexes on messages and favorites are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_messages_session_seq", "idx_favorites_created"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestAppendAndList(t *testing.T) {
	s := openTestStore(t)
	if err := s.Create("s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	userID, err := s.Append("s1", domain.Message{Role: domain.RoleUser, Content: "What is bail?"})
	if err != nil {
		t.Fatalf("Append user: %v", err)
	}
	if userID == "" {
		t.Fatal("expected generated id")
	}
	_, err = s.Append("s1", domain.Message{
		Role:    domain.RoleAssistant,
		Content: "Bail is conditional release.",
		Sources: []domain.Citation{{ID: "c1", Title: "Gurbaksh Singh Sibbia", Score: 0.8}},
	})
	if err != nil {
		t.Fatalf("Append assistant: %v", err)
	}

	msgs, err := s.List("s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != userID || msgs[0].Seq != 0 || msgs[0].Role != domain.RoleUser {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[0].Sources != nil {
		t.Errorf("user message should have no sources, got %v", msgs[0].Sources)
	}
	if msgs[1].Seq != 1 || len(msgs[1].Sources) != 1 || msgs[1].Sources[0].Score != 0.8 {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
	if msgs[1].CreatedAt.IsZero() {
		t.Error("created_at not round-tripped")
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Create("s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Append("s1", domain.Message{Role: domain.RoleUser, Content: "keep"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Create("s1"); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	msgs, err := s.List("s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected log to survive re-create, got %d messages", len(msgs))
	}
}

func TestUnknownSession(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Append("nope", domain.Message{Content: "x"}); !errors.Is(err, domain.ErrInvalidSession) {
		t.Errorf("Append: expected ErrInvalidSession, got %v", err)
	}
	if _, err := s.List("nope"); !errors.Is(err, domain.ErrInvalidSession) {
		t.Errorf("List: expected ErrInvalidSession, got %v", err)
	}
}

func TestRecentSessions(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		id := fmt.Sprintf("s%d", i)
		if err := s.Create(id); err != nil {
			t.Fatalf("Create: %v", err)
		}
		for j := 0; j < i; j++ {
			if _, err := s.Append(id, domain.Message{Content: "x"}); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
	}

	recs, err := s.RecentSessions(2)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "s2" || recs[0].MessageCount != 2 {
		t.Errorf("unexpected newest record: %+v", recs[0])
	}
	if recs[1].ID != "s1" || recs[1].MessageCount != 1 {
		t.Errorf("unexpected second record: %+v", recs[1])
	}
}

func TestFavorites(t *testing.T) {
	s := openTestStore(t)
	p := domain.Precedent{ID: "42", Title: "Vishaka v. State of Rajasthan", Court: "Supreme Court of India"}

	if err := s.SaveFavorite(p); err != nil {
		t.Fatalf("SaveFavorite: %v", err)
	}
	if err := s.SaveFavorite(p); err != nil {
		t.Fatalf("second SaveFavorite: %v", err)
	}

	favs, err := s.ListFavorites()
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 1 {
		t.Fatalf("expected 1 favorite, got %d", len(favs))
	}
	if favs[0].ID != "42" || !favs[0].IsFavorite || favs[0].Title != p.Title {
		t.Errorf("unexpected favorite: %+v", favs[0])
	}

	if err := s.DeleteFavorite("42"); err != nil {
		t.Fatalf("DeleteFavorite: %v", err)
	}
	if err := s.DeleteFavorite("42"); err != nil {
		t.Fatalf("second DeleteFavorite: %v", err)
	}
	favs, err = s.ListFavorites()
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 0 {
		t.Errorf("expected no favorites, got %d", len(favs))
	}
}
