// Package validator registers the platform's custom binding rules with
// gin's validator engine. Call Register once at startup, before the
// router starts serving.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Register wires the custom validations into gin's binding engine.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("daybucket", validDayBucket); err != nil {
		return err
	}
	return v.RegisterValidation("clocktime", validClockTime)
}

// validDayBucket accepts the three operating-hours buckets.
func validDayBucket(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "mon_fri", "sat", "sun":
		return true
	}
	return false
}

// validClockTime accepts 24-hour "HH:MM" strings.
func validClockTime(fl validator.FieldLevel) bool {
	return clockPattern.MatchString(fl.Field().String())
}
