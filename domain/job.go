package domain

import (
	"context"
	"errors"
)

// Job is one listing in the catalog.
type Job struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	Salary      string `json:"salary"`
	Description string `json:"desc"`
}

var ErrJobNotFound = errors.New("job not found")

// JobRepository serves the read-only catalog.
type JobRepository interface {
	List(ctx context.Context) ([]*Job, error)
	GetByID(ctx context.Context, id int) (*Job, error)
}
