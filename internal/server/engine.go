package server

import (
	"github.com/hpungsan/proofd/internal/checker"
	"github.com/hpungsan/proofd/internal/languagetool"
	"github.com/hpungsan/proofd/internal/settings"
)

// EngineFactory returns the LanguageTool client when a server URI is
// configured and the built-in engine otherwise.
func EngineFactory(opts ...languagetool.Option) checker.EngineFactory {
	builtin := checker.NewBuiltin()
	return func(s settings.Settings) (checker.Engine, error) {
		if s.LanguageToolHTTPServerURI == "" {
			return builtin, nil
		}
		return languagetool.New(s.LanguageToolHTTPServerURI, opts...), nil
	}
}
