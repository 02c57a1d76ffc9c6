package appErrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", appErrors.NewValidation("limit", "bad"), http.StatusBadRequest},
		{"not found", appErrors.NewCampaignNotFound("abc"), http.StatusNotFound},
		{"forbidden", appErrors.NewForbidden("delete"), http.StatusForbidden},
		{"conflict", appErrors.NewConflict("abc"), http.StatusConflict},
		{"invalid state", appErrors.NewInvalidState("suspend", "completed", ""), http.StatusUnprocessableEntity},
		{"wrapped not found", fmt.Errorf("lookup: %w", appErrors.NewCampaignNotFound("x")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, appErrors.HTTPStatus(tc.err))
		})
	}
}

func TestUnexpectedHidesDetails(t *testing.T) {
	err := appErrors.Unexpected("find campaigns", errors.New("dial tcp 10.0.0.3:5432: refused"))
	assert.Equal(t, "internal server error", appErrors.PublicMessage(err))
	assert.Contains(t, err.Error(), "find campaigns")
}

func TestUnexpectedKeepsClassifiedErrors(t *testing.T) {
	nf := appErrors.NewCampaignNotFound("abc")
	assert.Same(t, nf, appErrors.Unexpected("get", nf))
	assert.Nil(t, appErrors.Unexpected("get", nil))
}
