package seeder

import (
	"math"
	"math/rand"
	"time"
)

// RegionRow and SaleRow mirror the demo warehouse tables the seeder writes.
// The parquet column names become the view columns exposed to synthesis.
type RegionRow struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

type SaleRow struct {
	ID           int64   `parquet:"id"`
	RegionID     int64   `parquet:"region_id"`
	Product      string  `parquet:"product"`
	Quantity     int32   `parquet:"quantity"`
	Amount       float64 `parquet:"amount"`
	SoldAtUnixMs int64   `parquet:"sold_at_unix_ms"`
}

var regionNames = []string{"north", "south", "east", "west", "central", "apac", "emea", "latam"}

var productNames = []string{"widget", "gadget", "sprocket", "gizmo", "doohickey"}

type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Regions(count int) []RegionRow {
	if count > len(regionNames) {
		count = len(regionNames)
	}
	rows := make([]RegionRow, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, RegionRow{ID: int64(i + 1), Name: regionNames[i]})
	}
	return rows
}

func (g *Generator) Sales(count, regionCount int) []SaleRow {
	if regionCount < 1 {
		regionCount = 1
	}
	end := g.now()
	rows := make([]SaleRow, 0, count)
	for i := 0; i < count; i++ {
		soldAt := end.Add(-time.Duration(g.rnd.Intn(90*24)) * time.Hour)
		rows = append(rows, SaleRow{
			ID:           int64(i + 1),
			RegionID:     int64(g.rnd.Intn(regionCount) + 1),
			Product:      productNames[g.rnd.Intn(len(productNames))],
			Quantity:     int32(g.rnd.Intn(9) + 1),
			Amount:       round2(5 + g.rnd.Float64()*495),
			SoldAtUnixMs: soldAt.UnixMilli(),
		})
	}
	return rows
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
