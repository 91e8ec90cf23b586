package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/gofrs/uuid/v5"
)

func TestSyncPost_IdempotentAndDeduplicating(t *testing.T) {
	t.Parallel()
	svc := NewSyncService(&fakeHistory{}, nil)
	domain := uuid.Must(uuid.NewV4())

	res, err := svc.Post(context.Background(), domain, "WS-01", []string{"fax-1", "fax-2", " fax-1 ", ""})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if res.Inserted != 2 || res.Total != 2 {
		t.Fatalf("first post = %+v, want inserted 2 total 2", res)
	}

	// Retrying the same batch inserts nothing and still succeeds.
	res, err = svc.Post(context.Background(), domain, "WS-01", []string{"fax-1", "fax-2"})
	if err != nil {
		t.Fatalf("retry post: %v", err)
	}
	if res.Inserted != 0 || res.Total != 2 {
		t.Fatalf("retry post = %+v, want inserted 0 total 2", res)
	}
}

func TestSyncPost_EmptyBatchNoOp(t *testing.T) {
	t.Parallel()
	hist := &fakeHistory{addErr: fmt.Errorf("repository must not be touched")}
	svc := NewSyncService(hist, nil)

	for _, ids := range [][]string{nil, {}, {"", "  "}} {
		res, err := svc.Post(context.Background(), uuid.Must(uuid.NewV4()), "WS-01", ids)
		if err != nil {
			t.Fatalf("Post(%v): %v", ids, err)
		}
		if res.Inserted != 0 || res.Total != 0 {
			t.Fatalf("Post(%v) = %+v, want zero result", ids, res)
		}
	}
}

func TestSyncPost_TenantsIsolated(t *testing.T) {
	t.Parallel()
	svc := NewSyncService(&fakeHistory{}, nil)
	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())

	if _, err := svc.Post(context.Background(), a, "WS-01", []string{"fax-1"}); err != nil {
		t.Fatalf("Post a: %v", err)
	}
	res, err := svc.Post(context.Background(), b, "WS-02", []string{"fax-1"})
	if err != nil {
		t.Fatalf("Post b: %v", err)
	}
	if res.Inserted != 1 || res.Total != 1 {
		t.Fatalf("tenant b post = %+v, want its own fresh set", res)
	}
}

func TestSyncList_Paging(t *testing.T) {
	t.Parallel()
	svc := NewSyncService(&fakeHistory{}, nil)
	domain := uuid.Must(uuid.NewV4())

	ids := make([]string, 7)
	for i := range ids {
		ids[i] = fmt.Sprintf("fax-%d", i)
	}
	if _, err := svc.Post(context.Background(), domain, "WS-01", ids); err != nil {
		t.Fatalf("Post: %v", err)
	}

	page, err := svc.List(context.Background(), domain, "WS-01", 0, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.IDs) != 3 || page.Total != 7 {
		t.Fatalf("page = %+v, want 3 of 7", page)
	}
	if page.NextOffset == nil || *page.NextOffset != 3 {
		t.Fatalf("next_offset = %v, want 3", page.NextOffset)
	}

	// Walk the remainder through next_offset until the server stops paging.
	var got []string
	got = append(got, page.IDs...)
	for page.NextOffset != nil {
		page, err = svc.List(context.Background(), domain, "WS-01", *page.NextOffset, 3)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, page.IDs...)
	}
	if len(got) != 7 {
		t.Fatalf("walked %d ids, want 7", len(got))
	}
}

func TestSyncList_ClampsOffsetAndLimit(t *testing.T) {
	t.Parallel()
	svc := NewSyncService(&fakeHistory{}, nil)
	domain := uuid.Must(uuid.NewV4())
	if _, err := svc.Post(context.Background(), domain, "WS-01", []string{"fax-1", "fax-2"}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	page, err := svc.List(context.Background(), domain, "WS-01", -5, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Offset != 0 || page.Limit != MaxPageSize {
		t.Fatalf("clamped page = %+v, want offset 0 limit %d", page, MaxPageSize)
	}
	if len(page.IDs) != 2 || page.NextOffset != nil {
		t.Fatalf("page = %+v, want full set with no next_offset", page)
	}

	page, err = svc.List(context.Background(), domain, "WS-01", 0, MaxPageSize+1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Limit != MaxPageSize {
		t.Fatalf("limit = %d, want clamped to %d", page.Limit, MaxPageSize)
	}
}

func TestSyncList_EmptyTenant(t *testing.T) {
	t.Parallel()
	svc := NewSyncService(&fakeHistory{}, nil)

	page, err := svc.List(context.Background(), uuid.Must(uuid.NewV4()), "WS-01", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.IDs) != 0 || page.Total != 0 || page.NextOffset != nil {
		t.Fatalf("page = %+v, want empty", page)
	}
}
