package service

import "errors"

var (
	ErrValidation         = errors.New("validation")          // 400
	ErrInvalidCredentials = errors.New("invalid credentials") // 401
	ErrUnauthorized       = errors.New("unauthorized")        // 401
	ErrForbidden          = errors.New("forbidden")           // 403
	ErrNotFound           = errors.New("not found")           // 404
	ErrConflict           = errors.New("conflict")            // 409
	ErrEmptyCart          = errors.New("nothing to order")    // redirect to cart
	ErrTransaction        = errors.New("checkout failed")     // 500, retryable
)
