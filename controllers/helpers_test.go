package controllers_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yeremiapane/table-ordering/controllers"
	"github.com/yeremiapane/table-ordering/services"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", services.NotFound("order %d not found", 7), http.StatusNotFound},
		{"forbidden", services.Forbidden("no"), http.StatusForbidden},
		{"validation", services.Validation("bad"), http.StatusUnprocessableEntity},
		{"table unavailable", &services.Error{Kind: services.KindTableUnavailable}, http.StatusConflict},
		{"invalid transition", &services.Error{Kind: services.KindInvalidTransition}, http.StatusConflict},
		{"session not active", &services.Error{Kind: services.KindSessionNotActive}, http.StatusConflict},
		{"already joined", &services.Error{Kind: services.KindAlreadyJoined}, http.StatusConflict},
		{"exhausted", &services.Error{Kind: services.KindResourceExhausted}, http.StatusServiceUnavailable},
		{"unauthorized", &services.Error{Kind: services.KindUnauthorized}, http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("outer: %w", services.Forbidden("inner")), http.StatusForbidden},
		{"compensation", services.ErrCompensationFailed, http.StatusInternalServerError},
		{"internal", services.Internal("db down", errors.New("boom")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, controllers.StatusFor(tc.err))
		})
	}
}
