package books

type CreateBookPayload struct {
	ISBN string `json:"isbn" form:"isbn" mod:"trim" validate:"required,isbn"`
}

type ClassificationPayload struct {
	Level1   *int `json:"level1" form:"level1" validate:"omitempty,min=0"`
	Level10  *int `json:"level10" form:"level10" validate:"omitempty,min=0"`
	Level100 *int `json:"level100" form:"level100" validate:"omitempty,min=0"`
}
