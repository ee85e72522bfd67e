package models

import (
	"github.com/uptrace/bun"
)

const (
	GranularityClass    = 100
	GranularityDivision = 10
	GranularitySection  = 1
)

// Classification is a node in the decimal classification scheme. The code
// encodes its tier: multiples of 100 are classes, multiples of 10 are
// divisions, everything else is a section.
type Classification struct {
	bun.BaseModel `bun:"table:classifications,alias:c"`

	Code        int     `bun:",pk" json:"code"`
	Description string  `bun:",notnull" json:"description"`
	Granularity int     `bun:",notnull" json:"granularity"`
	Books       []*Book `bun:"rel:has-many,join:code=classification_code" json:"books,omitempty"`
}

// GranularityOf returns the tier a code belongs to.
func GranularityOf(code int) int {
	switch {
	case code%100 == 0:
		return GranularityClass
	case code%10 == 0:
		return GranularityDivision
	default:
		return GranularitySection
	}
}
