package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yourorg/calibr8/internal/db"
	"github.com/yourorg/calibr8/internal/db/dbtest"
)

func TestPoolWriteTagsCopy(t *testing.T) {
	d, pool := dbtest.Postgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ml, err := db.NewMasterlistRepo(d.DB).CreateFile(ctx, fmt.Sprintf("copy-%d.csv", time.Now().UnixNano()), "")
	if err != nil {
		t.Fatalf("create masterlist: %v", err)
	}
	rows := []db.TagRow{{Name: "TI-1"}, {Name: "TI-2", Data: map[string]string{"unit": "degC"}}}
	n, err := pool.WriteTags(ctx, ml.FileID, rows)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != 2 {
		t.Fatalf("copied %d rows, want 2", n)
	}
	tags, err := db.NewMasterlistRepo(d.DB).Tags(ctx, ml.FileID)
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(tags) != 2 || tags[1].TagName != "TI-2" {
		t.Fatalf("unexpected tags: %+v", tags)
	}
}
