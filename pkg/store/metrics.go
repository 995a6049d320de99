package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flockd_store_ops_total",
		Help: "Store operations by kind.",
	}, []string{"op"})

	diskBytes = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "flockd_store_disk_bytes",
		Help: "Best-effort on-disk size of the pebble directory.",
	}, func() float64 { return float64(DiskUsage()) })
)

func recordOp(op string) {
	opsTotal.WithLabelValues(op).Inc()
}

// DiskUsage returns the total size in bytes of files under the DB path.
func DiskUsage() uint64 {
	if dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		fi, ferr := d.Info()
		if ferr != nil {
			return nil
		}
		total += uint64(fi.Size())
		return nil
	})
	return total
}
