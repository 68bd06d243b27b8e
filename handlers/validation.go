package handlers

import (
	"log"

	"testdesk/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the domain rules used in request binding tags.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		log.Printf("[http] binding validator is not go-playground/validator, custom rules not registered")
		return
	}

	v.RegisterValidation("questiontype", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.QuestionTypeSimple, models.QuestionTypeComprehensive:
			return true
		}
		return false
	})
	v.RegisterValidation("correcttype", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case models.CorrectTypeSingle, models.CorrectTypeMultiple:
			return true
		}
		return false
	})
}
