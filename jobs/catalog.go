// Package jobs serves the static job catalog.
package jobs

import (
	"context"

	"go.pilab.hu/kerja/domain"
)

// Catalog is the read-only job board seeded at startup. Storage and
// search are out of scope.
type Catalog struct {
	jobs []*domain.Job
}

// NewCatalog returns the catalog with the seed listings.
func NewCatalog() *Catalog {
	return &Catalog{
		jobs: []*domain.Job{
			{
				ID:          1,
				Title:       "Store Manager",
				Location:    "Kuala Lumpur",
				Type:        "Full-time",
				Salary:      "RM 3000 - RM 4500",
				Description: "Mengelola operasional toko sehari-hari, mencapai target penjualan, dan memimpin tim toko.",
			},
			{
				ID:          2,
				Title:       "Cashier",
				Location:    "Selangor",
				Type:        "Part-time",
				Salary:      "RM 1500 - RM 1800",
				Description: "Melayani transaksi pelanggan dengan ramah, akurat, dan memastikan area kasir bersih.",
			},
			{
				ID:          3,
				Title:       "Promoter",
				Location:    "Penang",
				Type:        "Full-time",
				Salary:      "RM 1800 - RM 2200",
				Description: "Membantu pelanggan menemukan barang, menjaga kebersihan rak, dan restock barang.",
			},
		},
	}
}

// List returns every listing.
func (c *Catalog) List(_ context.Context) ([]*domain.Job, error) {
	return c.jobs, nil
}

// GetByID returns the listing with the given ID, or domain.ErrJobNotFound.
func (c *Catalog) GetByID(_ context.Context, id int) (*domain.Job, error) {
	for _, job := range c.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

var _ domain.JobRepository = (*Catalog)(nil)
