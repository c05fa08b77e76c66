package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// SyntaxError reports a document that the runtime would refuse to load.
type SyntaxError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// newCompileVM creates a Lua state with no libraries opened. It is only used
// to compile chunks, never to run them, so downloaded text cannot execute.
func newCompileVM() *lua.LState {
	return lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		IncludeGoStackTrace: false,
	})
}

// Validate checks that text compiles as a Lua chunk and contains at least
// one directive. Mirrors that answer with an HTML error page or a truncated
// body fail here before anything is written to disk.
func Validate(text string) error {
	L := newCompileVM()
	defer L.Close()

	if _, err := L.LoadString(strings.TrimPrefix(text, utf8BOM)); err != nil {
		detail := err.Error()
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return &SyntaxError{Message: "script does not compile", Detail: detail}
	}

	if Parse(text).IsEmpty() {
		return &SyntaxError{Message: "script has no directives", Detail: "expected at least one " + KeywordEntry + " line"}
	}
	return nil
}
