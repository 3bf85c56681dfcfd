package webhook

import (
	"errors"
	"fmt"
)

// GenericMessage is the only upstream-failure text end users ever see.
// Detail stays in server logs.
const GenericMessage = "Estamos tendo problemas no servidor, tente mais tarde."

// Kind classifies a failed webhook interaction. The classification is
// logged server-side; clients receive GenericMessage regardless.
type Kind string

const (
	KindConfigInvalid Kind = "config_invalid"
	KindUnauthorized  Kind = "upstream_unauthorized"
	KindNotFound      Kind = "upstream_not_found"
	KindRateLimited   Kind = "upstream_rate_limited"
	KindBadRequest    Kind = "upstream_bad_request"
	KindUnavailable   Kind = "upstream_unavailable"
	KindTimeout       Kind = "timeout"
	KindNetwork       Kind = "network_error"
)

type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// KindOf extracts the classification from err, or KindNetwork when the
// error did not come from this package.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindNetwork
}
