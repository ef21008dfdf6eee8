// Package action encodes navigation transitions as short callback tokens and
// decodes them back into a tagged Action value. Paths never travel over the
// wire; the token references an entry in the chat's session cache.
package action

import (
	"fmt"
	"strings"
)

// MaxPayload is the callback-data budget imposed by the messaging gateway.
const MaxPayload = 64

// Kind discriminates the navigation actions
type Kind int

const (
	Unknown Kind = iota
	SelectYear
	SelectCategory
	SelectCourse
	SelectSubcourse
	GoMenu
	GoBack
)

// String returns the kind's name for logs and metrics
func (k Kind) String() string {
	switch k {
	case SelectYear:
		return "select_year"
	case SelectCategory:
		return "select_category"
	case SelectCourse:
		return "select_course"
	case SelectSubcourse:
		return "select_subcourse"
	case GoMenu:
		return "go_menu"
	case GoBack:
		return "go_back"
	default:
		return "unknown"
	}
}

// wire prefixes, one per selection kind
const (
	prefixYear      = "y"
	prefixCategory  = "c"
	prefixCourse    = "r"
	prefixSubcourse = "s"
	literalMenu     = "menu"
	literalBack     = "back"
)

// Action is one decoded navigation transition
type Action struct {
	Kind  Kind
	Token string // session-cache key for the selection kinds, empty otherwise
}

// Encode renders an action as callback data. It fails only when the payload
// would exceed the gateway bound, which a sane token length never does.
func Encode(a Action) (string, error) {
	var data string

	switch a.Kind {
	case SelectYear:
		data = prefixYear + "|" + a.Token
	case SelectCategory:
		data = prefixCategory + "|" + a.Token
	case SelectCourse:
		data = prefixCourse + "|" + a.Token
	case SelectSubcourse:
		data = prefixSubcourse + "|" + a.Token
	case GoMenu:
		data = literalMenu
	case GoBack:
		data = literalBack
	default:
		return "", fmt.Errorf("cannot encode action kind %v", a.Kind)
	}

	if len(data) > MaxPayload {
		return "", fmt.Errorf("callback payload %d bytes exceeds bound %d", len(data), MaxPayload)
	}
	return data, nil
}

// Decode parses callback data into an Action. Anything unrecognized comes
// back as Unknown; the caller reports an invalid selection and keeps state.
func Decode(data string) Action {
	switch data {
	case literalMenu:
		return Action{Kind: GoMenu}
	case literalBack:
		return Action{Kind: GoBack}
	}

	prefix, token, ok := strings.Cut(data, "|")
	if !ok || token == "" {
		return Action{Kind: Unknown}
	}

	switch prefix {
	case prefixYear:
		return Action{Kind: SelectYear, Token: token}
	case prefixCategory:
		return Action{Kind: SelectCategory, Token: token}
	case prefixCourse:
		return Action{Kind: SelectCourse, Token: token}
	case prefixSubcourse:
		return Action{Kind: SelectSubcourse, Token: token}
	default:
		return Action{Kind: Unknown}
	}
}

// KindForDepth maps a navigation depth to the selection kind rendered at
// that level: 0 lists years, 1 categories, 2 courses, 3 and deeper list
// sections, which may nest.
func KindForDepth(depth int) Kind {
	switch {
	case depth == 0:
		return SelectYear
	case depth == 1:
		return SelectCategory
	case depth == 2:
		return SelectCourse
	case depth >= 3:
		return SelectSubcourse
	default:
		return Unknown
	}
}
