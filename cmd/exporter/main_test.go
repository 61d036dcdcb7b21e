package main

import (
	"reflect"
	"testing"

	"fars-analytics/internal/models"
)

func TestSkippedYears(t *testing.T) {
	tests := []struct {
		name      string
		requested []models.Year
		loaded    []models.Year
		want      []models.Year
	}{
		{"all loaded", []models.Year{2013, 2014}, []models.Year{2013, 2014}, nil},
		{"repeated request, all loaded", []models.Year{2013, 2013, 2014}, []models.Year{2013, 2014}, nil},
		{"repeated missing year counted once", []models.Year{9999, 2013, 9999}, []models.Year{2013}, []models.Year{9999}},
		{"request order kept", []models.Year{2016, 2013, 1999}, []models.Year{2013}, []models.Year{2016, 1999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skippedYears(tt.requested, tt.loaded); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("skippedYears() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDistinctYears(t *testing.T) {
	got := distinctYears([]models.Year{2014, 2013, 2014})
	if !reflect.DeepEqual(got, []models.Year{2014, 2013}) {
		t.Errorf("distinctYears() = %v, want [2014 2013]", got)
	}
}
