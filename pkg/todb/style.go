package todb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Style is a placeholder convention understood by some database driver.
type Style int

const (
	QMark    Style = iota // where a = ?
	Format                // where a = %s
	Numeric               // where a = :1
	Named                 // where a = :a
	PyFormat              // where a = %(a)s
	Dollar                // where a = $1
)

var ErrUnknownStyle = errors.New("unknown parameter style")

var styleNames = [...]string{
	QMark:    "qmark",
	Format:   "format",
	Numeric:  "numeric",
	Named:    "named",
	PyFormat: "pyformat",
	Dollar:   "dollar",
}

func (s Style) String() string {
	if !s.valid() {
		return fmt.Sprintf("Style(%d)", int(s))
	}
	return styleNames[s]
}

func (s Style) valid() bool { return s >= 0 && int(s) < len(styleNames) }

// ParseStyle accepts the lower-case style names, ignoring case and
// surrounding space.
func ParseStyle(name string) (Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range styleNames {
		if n == name {
			return Style(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStyle, name)
}

func (s Style) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStyle, int(s))
	}
	return []byte(styleNames[s]), nil
}

func (s *Style) UnmarshalText(b []byte) error {
	v, err := ParseStyle(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Keyed reports whether the style binds by name, in which case the
// parameter container is a mapping rather than a list.
func (s Style) Keyed() bool { return s == Named || s == PyFormat }

// placeholder spells one parameter reference. n is 1-based and only
// meaningful for numbered styles.
func (s Style) placeholder(name string, n int) string {
	switch s {
	case QMark:
		return "?"
	case Format:
		return "%s"
	case Numeric:
		return ":" + strconv.Itoa(n)
	case Named:
		return ":" + name
	case PyFormat:
		return "%(" + name + ")s"
	case Dollar:
		return "$" + strconv.Itoa(n)
	}
	panic("todb: placeholder for invalid style " + s.String())
}
