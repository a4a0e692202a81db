package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeValidationError(w http.ResponseWriter, details []FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Validation failed",
		"details": details,
	})
}

// validateQuestion enforces the minimum length of 1 without trimming, the
// same rule the upstream clients expect.
func validateQuestion(question string) []FieldError {
	if len(question) < 1 {
		return []FieldError{{Path: "question", Message: "Input cannot be empty"}}
	}
	return nil
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("File too large. Max %d bytes allowed.", limit)
}
