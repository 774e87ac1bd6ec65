package extract

import (
	"io"

	"github.com/goccy/go-json"
)

// WriteJSON writes rows as a JSON array of arrays.
func WriteJSON(w io.Writer, rows [][]float32) error {
	if rows == nil {
		rows = [][]float32{}
	}
	return json.NewEncoder(w).Encode(rows)
}
