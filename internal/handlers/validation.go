package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by request bodies.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Println("[VALIDATION] [WARN] binding engine is not validator/v10; custom rules skipped")
			return
		}
		if err := v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		}); err != nil {
			log.Printf("[VALIDATION] [ERROR] register objectid rule: %v", err)
		}
	})
}

// respondValidationError turns binding failures into a 400 listing each
// offending field.
func respondValidationError(c *gin.Context, route string, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondWithError(c, http.StatusBadRequest, route, codeValidation, "invalid request body")
		return
	}

	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := describeField(fe)
		fields[lowerFirst(fe.Field())] = msg
		msgs = append(msgs, msg)
	}
	respondWithBody(c, http.StatusBadRequest, route, gin.H{
		"error":  strings.Join(msgs, "; "),
		"code":   codeValidation,
		"fields": fields,
	})
}

func describeField(fe validator.FieldError) string {
	name := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "objectid":
		return name + " must be a valid id"
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	case "email":
		return name + " must be a valid email"
	case "dive":
		return name + " is invalid"
	}
	return fmt.Sprintf("%s failed %s", name, fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
