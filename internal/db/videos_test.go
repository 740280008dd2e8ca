package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bobarin/clipforge/internal/models"
)

func strPtr(s string) *string { return &s }

func TestBuildVideoUpdate(t *testing.T) {
	dur := 42.5
	query, args := buildVideoUpdate(9, models.VideoUpdate{
		Title:    strPtr("New title"),
		Duration: &dur,
	})

	want := "UPDATE videos SET title = $1, duration = $2 WHERE id = $3"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 3 || args[0] != "New title" || args[1] != 42.5 || args[2] != int64(9) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildVideoUpdateEmpty(t *testing.T) {
	query, args := buildVideoUpdate(1, models.VideoUpdate{})
	if query != "" || args != nil {
		t.Fatalf("expected no statement, got %q %v", query, args)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}

// Integration tests run only against a disposable database.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := New(url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(context.Background(), `TRUNCATE videos RESTART IDENTITY`)
		db.Close()
	})
	if _, err := db.ExecContext(context.Background(), `TRUNCATE videos RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func TestVideoCatalogRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	older := &models.Video{Title: "Ancient Rome", Category: "History", Format: "16:9", Path: "/out/rome.mp4", Duration: 30, CreatedAt: base.Add(-time.Hour)}
	newer := &models.Video{Title: "Deep Sea", Category: "Nature", Format: "9:16", Path: "/out/sea.mp4", Duration: 12.5, CreatedAt: base}

	olderID, err := db.AddVideo(ctx, older)
	if err != nil {
		t.Fatalf("AddVideo: %v", err)
	}
	newerID, err := db.AddVideo(ctx, newer)
	if err != nil {
		t.Fatalf("AddVideo: %v", err)
	}
	if newerID <= olderID {
		t.Fatalf("ids should increase: %d then %d", olderID, newerID)
	}

	got, err := db.GetVideo(ctx, olderID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Title != "Ancient Rome" || got.Status != models.VideoStatusCompleted || got.ThumbnailPath != nil {
		t.Fatalf("unexpected video %+v", got)
	}

	list, err := db.ListVideos(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(list) != 2 || list[0].ID != newerID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	page, _ := db.ListVideos(ctx, 1, 1)
	if len(page) != 1 || page[0].ID != olderID {
		t.Fatalf("unexpected second page %+v", page)
	}

	found, err := db.SearchVideos(ctx, "histo")
	if err != nil {
		t.Fatalf("SearchVideos: %v", err)
	}
	if len(found) != 1 || found[0].ID != olderID {
		t.Fatalf("search by category failed: %+v", found)
	}

	ok, err := db.UpdateVideo(ctx, olderID, models.VideoUpdate{Title: strPtr("Rome Rises")})
	if err != nil || !ok {
		t.Fatalf("UpdateVideo = %v, %v", ok, err)
	}
	got, _ = db.GetVideo(ctx, olderID)
	if got.Title != "Rome Rises" || got.Category != "History" {
		t.Fatalf("update should touch only title: %+v", got)
	}

	if ok, _ := db.UpdateVideo(ctx, 99999, models.VideoUpdate{Title: strPtr("x")}); ok {
		t.Fatal("update of missing id should report false")
	}

	ok, err = db.DeleteVideo(ctx, olderID)
	if err != nil || !ok {
		t.Fatalf("DeleteVideo = %v, %v", ok, err)
	}
	if _, err := db.GetVideo(ctx, olderID); err != ErrVideoNotFound {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
	if ok, _ := db.DeleteVideo(ctx, olderID); ok {
		t.Fatal("second delete should report false")
	}

	count, err := db.CountVideos(ctx)
	if err != nil || count != 1 {
		t.Fatalf("CountVideos = %d, %v", count, err)
	}
}
