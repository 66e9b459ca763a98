package seeder

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/queryforge/queryforge/internal/storage"
)

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	infos := make([]storage.ObjectInfo, 0)
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return infos, nil
}

func TestSeedWritesBothTables(t *testing.T) {
	store := newFakeStore()
	s := New(store, nil)

	err := s.Seed(context.Background(), Config{Regions: 3, Sales: 10, RowsPerFile: 4, Seed: 42})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	regionFiles, err := store.List(context.Background(), "tables/region/")
	if err != nil {
		t.Fatalf("list region files: %v", err)
	}
	if len(regionFiles) != 1 {
		t.Fatalf("region files = %d", len(regionFiles))
	}

	salesFiles, err := store.List(context.Background(), "tables/sales/")
	if err != nil {
		t.Fatalf("list sales files: %v", err)
	}
	if len(salesFiles) != 3 {
		t.Fatalf("sales files = %d, want 3 chunks of <=4 rows", len(salesFiles))
	}
}

func TestSeededSalesReferenceKnownRegions(t *testing.T) {
	store := newFakeStore()
	s := New(store, nil)

	if err := s.Seed(context.Background(), Config{Regions: 2, Sales: 20, RowsPerFile: 100, Seed: 7}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	data, ok := store.objects["tables/sales/sales-00000.parquet"]
	if !ok {
		t.Fatal("sales parquet file missing")
	}
	rows, err := parquet.Read[SaleRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(rows) != 20 {
		t.Fatalf("rows = %d", len(rows))
	}
	for _, row := range rows {
		if row.RegionID < 1 || row.RegionID > 2 {
			t.Fatalf("region_id %d out of range", row.RegionID)
		}
		if row.Amount <= 0 {
			t.Fatalf("amount = %f", row.Amount)
		}
	}
}

func TestGeneratorIsDeterministicForSeed(t *testing.T) {
	a := NewGenerator(99).Sales(5, 3)
	b := NewGenerator(99).Sales(5, 3)
	for i := range a {
		if a[i].RegionID != b[i].RegionID || a[i].Amount != b[i].Amount || a[i].Product != b[i].Product {
			t.Fatalf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
