// Package timewarp routes source programs to the right language frontend
// and is the only package hosts need besides engine.
package timewarp

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/basic"
	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/pascal"
	"github.com/James-HoneyBadger/timewarp/internal/prolog"
)

// Load parses source as the given language. On a syntax problem it reports
// the first diagnostic; a session is only available once parsing succeeds.
func Load(kind engine.Kind, source string) (engine.Program, error) {
	switch kind {
	case engine.KindBasic:
		prog, errs := basic.Parse(source)
		return loaded(prog, errs, kind)
	case engine.KindPascal:
		prog, errs := pascal.Parse(source)
		return loaded(prog, errs, kind)
	case engine.KindProlog:
		prog, errs := prolog.Parse(source)
		return loaded(prog, errs, kind)
	}
	return nil, diag.Errorf(diag.Position{}, "unknown language %q", string(kind))
}

func loaded(prog engine.Program, errs []*diag.Error, kind engine.Kind) (engine.Program, error) {
	if len(errs) > 0 {
		return nil, errs[0]
	}
	slog.Debug("program loaded", "language", string(kind))
	return prog, nil
}

// extKinds maps file extensions to languages. The BASIC frontend also hosts
// the PILOT and Logo forms, so their extensions land there.
var extKinds = map[string]engine.Kind{
	".twb":   engine.KindBasic,
	".bas":   engine.KindBasic,
	".logo":  engine.KindBasic,
	".pilot": engine.KindBasic,
	".tw":    engine.KindBasic,
	".twp":   engine.KindPascal,
	".pas":   engine.KindPascal,
	".tpr":   engine.KindProlog,
	".plg":   engine.KindProlog,
}

// Detect picks a language for path, falling back to content sniffing when
// the extension is unknown.
func Detect(path, source string) engine.Kind {
	if kind, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return DetectSource(source)
}

// DetectSource guesses the language of unlabeled source. Prolog shows its
// clause punctuation and Pascal its block syntax; everything else runs as
// BASIC, whose parser also accepts the PILOT and Logo statement forms.
func DetectSource(source string) engine.Kind {
	lower := strings.ToLower(source)
	switch {
	case strings.Contains(lower, ":-") || strings.Contains(lower, "?-"):
		return engine.KindProlog
	case strings.Contains(lower, ":="):
		return engine.KindPascal
	case strings.Contains(lower, "program ") && strings.Contains(lower, "end."):
		return engine.KindPascal
	case strings.Contains(lower, "begin") && strings.Contains(lower, "end."):
		return engine.KindPascal
	}
	return engine.KindBasic
}
