package controllers

import (
	"net/http"

	"github.com/sizif-22/eventy-back/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"message": "Server is running"})
	}
}
