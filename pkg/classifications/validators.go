package classifications

type ListClassificationsQuery struct {
	Granularity []int `query:"granularity" json:"granularity,omitempty" validate:"dive,oneof=1 10 100"`
}
