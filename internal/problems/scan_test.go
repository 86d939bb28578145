package problems_test

import (
	"context"
	"errors"
	"testing"

	"github.com/modforge/cdengine/internal/problems"
	"github.com/modforge/cdengine/internal/problems/problemstest"
)

func TestFakeConformance(t *testing.T) {
	problemstest.RunProviderTests(t, func(t *testing.T, fixture problemstest.Fixture) problems.Provider {
		t.Helper()
		f := problems.NewFake()
		for id, recs := range fixture {
			f.Set(id, recs...)
		}
		return f
	})
}

func TestScan_NotReadyFileSkipped(t *testing.T) {
	f := problems.NewFake()
	f.Set("src/A.java", problems.Record{Message: "a"})
	f.Set("src/B.java", problems.Record{Message: "b"})
	f.SetNotReady("src/B.java", true)

	res, err := problems.Scan(context.Background(), f)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Files) != 1 || res.Files[0].ID != "src/A.java" {
		t.Errorf("Files = %+v, want only src/A.java", res.Files)
	}
	if len(res.NotReady) != 1 || res.NotReady[0] != "src/B.java" {
		t.Errorf("NotReady = %v, want [src/B.java]", res.NotReady)
	}
}

func TestScan_FileWithNoRecordsDropped(t *testing.T) {
	f := problems.NewFake()
	f.Set("src/Clean.java")
	res, err := problems.Scan(context.Background(), f)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Empty() {
		t.Errorf("Files = %+v, want none", res.Files)
	}
}

func TestScan_ListErrorFails(t *testing.T) {
	f := problems.NewFake()
	f.FailList(errors.New("index offline"))
	if _, err := problems.Scan(context.Background(), f); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

type flakyProvider struct{ *problems.Fake }

func (p flakyProvider) ProblemsFor(ctx context.Context, id problems.FileID) ([]problems.Record, error) {
	if id == "src/Broken.java" {
		return nil, errors.New("psi tree unavailable")
	}
	return p.Fake.ProblemsFor(ctx, id)
}

func TestScan_PerFileErrorSkipsFile(t *testing.T) {
	f := problems.NewFake()
	f.Set("src/Broken.java", problems.Record{Message: "x"})
	f.Set("src/Ok.java", problems.Record{Message: "y"})

	res, err := problems.Scan(context.Background(), flakyProvider{f})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Files) != 1 || res.Files[0].ID != "src/Ok.java" {
		t.Errorf("Files = %+v, want only src/Ok.java", res.Files)
	}
	if res.Unavailable["src/Broken.java"] == nil {
		t.Error("Unavailable missing src/Broken.java")
	}
}

func TestScan_Cancelled(t *testing.T) {
	f := problems.NewFake()
	f.Set("src/A.java", problems.Record{Message: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := problems.Scan(ctx, f); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan error = %v, want context.Canceled", err)
	}
}

func TestScan_EquivalentIDsMerged(t *testing.T) {
	f := problems.NewFake()
	f.Set("./src/A.java", problems.Record{Message: "missing semicolon"})
	f.Set("src/A.java", problems.Record{Message: "unknown symbol"})
	f.Set("src/../src/B.java", problems.Record{Message: "b"})

	res, err := problems.Scan(context.Background(), f)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("Files = %+v, want src/A.java and src/B.java", res.Files)
	}
	if res.Files[0].ID != "src/A.java" || len(res.Files[0].Problems) != 2 {
		t.Errorf("Files[0] = %+v, want src/A.java with both records", res.Files[0])
	}
	if res.Files[1].ID != "src/B.java" {
		t.Errorf("Files[1].ID = %q, want src/B.java", res.Files[1].ID)
	}
}
