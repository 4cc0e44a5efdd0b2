package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "nil",
			err:  nil,
			want: http.StatusOK,
		},
		{
			name: "validation",
			err:  Validationf("bad context kind %q", "nope"),
			want: http.StatusBadRequest,
		},
		{
			name: "not found",
			err:  NotFoundf("track %s", "t1"),
			want: http.StatusNotFound,
		},
		{
			name: "conflict",
			err:  Conflictf("target device %s is not registered", "d1"),
			want: http.StatusConflict,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromStatusRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrConflict} {
		wrapped := FromStatus(HTTPStatus(sentinel), "detail")
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("FromStatus(HTTPStatus(%v)) lost the sentinel", sentinel)
		}
	}
}

func TestGetSuggestion(t *testing.T) {
	err := WithSuggestion(errors.New("boom"), "try again")
	if got := GetSuggestion(err); got != "try again" {
		t.Errorf("GetSuggestion() = %q, want %q", got, "try again")
	}

	if got := GetSuggestion(Conflictf("target device %q is not registered", "d9")); got == "" {
		t.Error("expected a suggestion for unregistered device conflicts")
	}

	if got := GetSuggestion(nil); got != "" {
		t.Errorf("GetSuggestion(nil) = %q, want empty", got)
	}
}
