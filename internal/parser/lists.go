package parser

import "encoding/json"

// The gateway is not consistent about list fields: depending on lesson
// age they arrive as an array, a single object, or null. These wrappers
// accept all three and anything else decays to empty.

type mediaList []mediaEntry

func (l *mediaList) UnmarshalJSON(b []byte) error {
	*l = unmarshalListOrOne[mediaEntry](b)
	return nil
}

type fileList []fileEntry

func (l *fileList) UnmarshalJSON(b []byte) error {
	*l = unmarshalListOrOne[fileEntry](b)
	return nil
}

type captionList []captionEntry

func (l *captionList) UnmarshalJSON(b []byte) error {
	*l = unmarshalListOrOne[captionEntry](b)
	return nil
}

func unmarshalListOrOne[T any](b []byte) []T {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '[' {
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return nil
		}
		return many
	}

	if b[0] == '{' {
		var one T
		if err := json.Unmarshal(b, &one); err != nil {
			return nil
		}
		return []T{one}
	}

	return nil
}
