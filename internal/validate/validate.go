// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package validate checks submitted forms. Each form is a struct with
// validator tags; Check returns the first problem as a sentence that can be
// shown to the user as a flash message.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"edustream/internal/models"
)

// Limits shared with the database column sizes.
const (
	maxTitleLen = 200
	maxPrice    = "99999999.99"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.@+-]+$`)

// Signup is the registration form.
type Signup struct {
	Username        string `form:"username" validate:"required,max=150,username"`
	Email           string `form:"email" validate:"required,email,max=254"`
	Password        string `form:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `form:"password confirmation" validate:"eqfield=Password"`
	Role            string `form:"role" validate:"required,role"`
}

// Login is the first login step.
type Login struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required,max=128"`
}

// OTP is the second login step.
type OTP struct {
	Code string `form:"code" validate:"len=6,numeric"`
}

// Course is the course create/edit form.
type Course struct {
	Title       string `form:"title" validate:"notblank,max=200"`
	Description string `form:"description" validate:"max=10000"`
	Price       string `form:"price" validate:"required,price"`
	CategoryID  string `form:"category" validate:"omitempty,uuid"`
}

// Content is one row of the content editor.
type Content struct {
	Title    string `form:"title" validate:"notblank,max=200"`
	Kind     string `form:"kind" validate:"required,content_kind"`
	VideoURL string `form:"video URL" validate:"omitempty,url,max=2000"`
	Order    int    `form:"display order" validate:"gte=0"`
}

// Validator wraps a configured go-playground validator.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the form rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return strings.ToLower(f.Name)
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := models.ParseRole(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("content_kind", func(fl validator.FieldLevel) bool {
		kind := models.ContentKind(fl.Field().String())
		for _, k := range models.ContentKinds {
			if k == kind {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		_, err := ParsePrice(fl.Field().String())
		return err == nil
	})

	return &Validator{validate: v}
}

// Check validates a form struct and returns the first error message, or ""
// when the form is valid.
func (v *Validator) Check(form any) string {
	err := v.validate.Struct(form)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid form submission."
	}
	return message(verrs[0])
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	label := strings.ToUpper(field[:1]) + field[1:]

	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required."
	case "max":
		return fmt.Sprintf("%s is too long (max %s characters).", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters.", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative.", label)
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "Passwords do not match."
	case "numeric":
		return label + " must contain digits only."
	case "username":
		return "Username may contain only letters, digits and @/./+/-/_ characters."
	case "role":
		return "Choose either student or teacher."
	case "content_kind":
		return "Unknown content type."
	case "price":
		return "Price must be a non-negative amount with at most two decimals."
	case "url":
		return label + " must be a valid URL."
	case "uuid":
		return "Unknown " + field + "."
	}
	return label + " is invalid."
}

// ParsePrice parses a course price that fits NUMERIC(10,2).
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > 16 {
		return decimal.Zero, errors.New("invalid price")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("price must not be negative")
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Zero, errors.New("price has more than two decimals")
	}
	if d.GreaterThan(decimal.RequireFromString(maxPrice)) {
		return decimal.Zero, errors.New("price too large")
	}
	return d.Round(2), nil
}

// Title trims a title and reports whether it is within limits. Used for
// fields that are not submitted as a whole form.
func Title(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && utf8.RuneCountInString(s) <= maxTitleLen
}

