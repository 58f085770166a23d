package screens

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
)

type NoticeKind int

const (
	NoticeInfo NoticeKind = iota + 1
	NoticeSuccess
	NoticeValidation
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeInfo:
		return "info"
	case NoticeSuccess:
		return "success"
	case NoticeValidation:
		return "validation"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a dismissible message shown on top of a screen.
type Notice struct {
	Kind    NoticeKind
	Title   string
	Message string
}

func successNotice(msg string) *Notice {
	return &Notice{Kind: NoticeSuccess, Title: "Success", Message: msg}
}

// errorNotice turns err into what the professor sees. `action` names what failed, eg. "delete the class".
func errorNotice(action string, err error) *Notice {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		msg := vErr.Error()
		if len(vErr.Fields) > 0 {
			msg = fmt.Sprintf("%s: %s", vErr.Fields[0].Field, vErr.Fields[0].Error)
		}
		return &Notice{Kind: NoticeValidation, Title: "Attention", Message: msg}
	}

	switch {
	case core.IsAuthError(err, core.AuthInvalidCredentials):
		return &Notice{Kind: NoticeError, Title: "Sign-in failed", Message: "Check your email and password."}
	case core.IsAuthError(err, core.AuthNetwork), core.IsDataError(err, core.DataNetwork):
		return &Notice{Kind: NoticeError, Title: "Error", Message: fmt.Sprintf("Could not %s. Check your connection and try again.", action)}
	case core.IsDataError(err, core.DataPermissionDenied):
		return &Notice{Kind: NoticeError, Title: "Error", Message: fmt.Sprintf("Could not %s. You are not allowed to.", action)}
	case core.IsDataError(err, core.DataNotFound):
		return &Notice{Kind: NoticeError, Title: "Error", Message: fmt.Sprintf("Could not %s. It no longer exists.", action)}
	case core.IsDataError(err, core.DataValidation):
		return &Notice{Kind: NoticeError, Title: "Error", Message: fmt.Sprintf("Could not %s. The server rejected it.", action)}
	case core.IsInvariant(err):
		return &Notice{Kind: NoticeError, Title: "Authentication error", Message: "You are not signed in. Sign in again."}
	default:
		return &Notice{Kind: NoticeError, Title: "Error", Message: fmt.Sprintf("Could not %s.", action)}
	}
}
