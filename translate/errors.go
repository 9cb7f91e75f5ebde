package translate

import "errors"

// ErrTransport is returned when the request to the backend could not be
// completed: proxy failure, network failure, or a non-2xx status.
var ErrTransport = errors.New("lingo/translate: transport failure")

// ErrMalformed is returned when the backend response is not parseable or is
// missing the translated text field.
var ErrMalformed = errors.New("lingo/translate: malformed response")

// ErrEmptyTranslation is returned when the backend reports success but the
// translated text is blank.
var ErrEmptyTranslation = errors.New("lingo/translate: backend returned empty translation")
