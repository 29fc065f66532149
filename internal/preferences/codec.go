package preferences

import (
	"encoding/json"
	"fmt"
)

// Decode parses a stored record over the defaults, so any field missing
// from an older record keeps its default value.
func Decode(data []byte) (Preferences, error) {
	p := Default()
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	if p.Language == "" {
		p.Language = LanguageEnglish
	}
	return p.normalized(), nil
}

// Encode serializes p in the stored record layout.
func Encode(p Preferences) ([]byte, error) {
	data, err := json.Marshal(p.normalized())
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	return data, nil
}
