package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"carevoice-backend/internal/parse"
)

var registerOnce sync.Once

// registerValidators adds the "hhmm" and "weekdays" tags to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return parse.IsTimeOfDay(fl.Field().String())
		})
		_ = v.RegisterValidation("weekdays", func(fl validator.FieldLevel) bool {
			days, ok := fl.Field().Interface().([]int)
			if !ok {
				return false
			}
			_, err := parse.Weekdays(days)
			return err == nil
		})
	})
}
