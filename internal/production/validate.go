package production

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var (
	ErrInvalidJob        = errors.New("invalid job")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateJob      = errors.New("job id already exists")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidJob, fmt.Sprintf(format, args...))
}

// normalize trims user fields and canonicalises the language tag in place.
func normalize(j *Job) error {
	j.ID = strings.TrimSpace(j.ID)
	j.Prompt = strings.TrimSpace(j.Prompt)
	j.AspectRatio = strings.TrimSpace(j.AspectRatio)
	j.Language = strings.TrimSpace(j.Language)

	if j.Language != "" {
		tag, err := language.Parse(j.Language)
		if err != nil {
			return invalid("language %q is not a BCP 47 tag", j.Language)
		}
		j.Language = tag.String()
	}
	return nil
}

func validate(j *Job) error {
	if err := normalize(j); err != nil {
		return err
	}
	if j.ID == "" {
		return invalid("id is required")
	}
	if len(j.ID) > 64 {
		return invalid("id longer than 64 characters")
	}
	if j.Prompt == "" {
		return invalid("prompt is required")
	}
	if j.AspectRatio != AspectLandscape && j.AspectRatio != AspectPortrait {
		return invalid("aspectRatio must be %s or %s", AspectLandscape, AspectPortrait)
	}
	if !j.Status.Valid() {
		return invalid("unknown status %q", j.Status)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return invalid("progress %d out of range 0..100", j.Progress)
	}
	return nil
}
