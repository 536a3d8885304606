package eventstore

import (
	"git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
)

// Sentinels; errors.Is matches any error derived from them.
var (
	ErrOpen   = errors.HistoryError("could not open run history").Build()
	ErrSchema = errors.HistoryError("could not prepare run history schema").Build()
	ErrAppend = errors.HistoryError("could not record run event").Build()
	ErrQuery  = errors.HistoryError("could not read run history").Build()
)

func wrap(sentinel *errors.ClassifiedError, err error) error {
	return errors.WrapError(err, errors.CategoryHistory, sentinel.Message()).Build()
}
