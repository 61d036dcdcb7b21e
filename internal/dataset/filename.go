package dataset

import (
	"fmt"

	"fars-analytics/internal/models"
)

// BuildFilename returns the canonical name of a year's accident file
func BuildFilename(year models.Year) string {
	return fmt.Sprintf("accident_%d.csv.bz2", int(year))
}
