package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

func mustURL(t *testing.T, raw string) crawler.CanonicalURL {
	t.Helper()
	u, err := crawler.ParseRoot(raw)
	require.NoError(t, err)
	return u
}

func sampleResult(t *testing.T, id string, started time.Time) *crawler.Result {
	t.Helper()
	root := mustURL(t, "https://a.com")
	help := mustURL(t, "https://a.com/help")
	external := mustURL(t, "https://b.com/x")

	return &crawler.Result{
		ID:   id,
		Root: root,
		Pages: []crawler.PageRecord{
			crawler.NewPageRecord(root, []crawler.CanonicalURL{root, help, external}),
			crawler.NewPageRecord(help, nil),
		},
		Stats:      crawler.Stats{Submitted: 3, Completed: 3, Failed: 1},
		Seen:       3,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Partial:    true,
		TimedOut:   true,
	}
}

func openTestDB(t *testing.T) *ResultDB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndLoadCrawl(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	want := sampleResult(t, "crawl-1", time.Unix(1_700_000_000, 0))

	require.NoError(t, db.SaveCrawl(ctx, want))

	got, err := db.LoadCrawl(ctx, "crawl-1")
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Root, got.Root)
	assert.Equal(t, want.Stats, got.Stats)
	assert.Equal(t, want.Seen, got.Seen)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, want.Duration(), got.Duration())
	assert.True(t, got.Partial)
	assert.True(t, got.TimedOut)

	require.Len(t, got.Pages, 2)
	assert.Equal(t, want.Pages[0].URL(), got.Pages[0].URL())
	assert.Equal(t, want.Pages[0].Links(), got.Pages[0].Links())
	assert.Equal(t, 0, got.Pages[1].LinkCount())
}

func TestLoadCrawl_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.LoadCrawl(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCrawlNotFound)
}

func TestSaveCrawl_DuplicateID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	res := sampleResult(t, "dup", time.Now())

	require.NoError(t, db.SaveCrawl(ctx, res))
	assert.Error(t, db.SaveCrawl(ctx, res))

	got, err := db.LoadCrawl(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, got.Pages, 2, "failed save must not add pages")
}

func TestListCrawls(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	base := time.Unix(1_700_000_000, 0)

	for i, id := range []string{"old", "middle", "new"} {
		require.NoError(t, db.SaveCrawl(ctx, sampleResult(t, id, base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := db.ListCrawls(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "middle", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "https://a.com", all[0].Root)
	assert.Equal(t, 2, all[0].PageCount)
	assert.Equal(t, int64(1), all[0].Failed)

	limited, err := db.ListCrawls(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListCrawls_Empty(t *testing.T) {
	db := openTestDB(t)

	got, err := db.ListCrawls(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestDeleteCrawl(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.SaveCrawl(ctx, sampleResult(t, "gone", time.Now())))

	require.NoError(t, db.DeleteCrawl(ctx, "gone"))
	_, err := db.LoadCrawl(ctx, "gone")
	assert.ErrorIs(t, err, ErrCrawlNotFound)
	assert.ErrorIs(t, db.DeleteCrawl(ctx, "gone"), ErrCrawlNotFound)
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.SaveCrawl(ctx, sampleResult(t, "persisted", time.Now())))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.LoadCrawl(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.ID)
}
