package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Movie struct {
	ID              ID     `json:"id"`
	Title           string `json:"title"`
	Genre           string `json:"genre"`
	Language        string `json:"language"`
	DurationMinutes int    `json:"duration"`
	Rating          Rating `json:"rating"`
	Description     string `json:"description"`
	PosterURL       string `json:"poster_url"`
}

// Rating is the content classification of a movie. Some services report a
// numeric score instead; it is kept as its decimal text.
type Rating string

func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Rating(strings.TrimSpace(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid rating %s: %w", data, err)
	}
	*r = Rating(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}
