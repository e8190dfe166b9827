// Package analysis holds the pure functions that annotate an activity:
// productivity classification, session key resolution and scoring.
package analysis

import (
	"strings"

	"github.com/ashureev/devpulse/internal/domain"
)

var (
	codeExtensions = []string{
		".js", ".ts", ".jsx", ".tsx", ".py", ".java", ".cpp", ".c", ".go", ".rs", ".php", ".rb",
	}
	configExtensions = []string{
		".json", ".yml", ".yaml", ".toml", ".ini", ".env",
	}
	fileOperationExtensions = append(append([]string{}, codeExtensions...), ".html", ".css", ".scss")
)

// Classify reports whether an activity counts as productive time.
//
// Extension matching is a case-sensitive suffix test on the file path.
func Classify(a *domain.Activity) bool {
	switch a.Kind {
	case domain.KindCoding:
		if hasSuffix(a.FilePath, codeExtensions) {
			if a.Metadata != nil && a.Metadata.LinesChanged != nil {
				return *a.Metadata.LinesChanged > 0
			}
			return true
		}
		return hasSuffix(a.FilePath, configExtensions)
	case domain.KindDebugging:
		return true
	case domain.KindFileOperation:
		return hasSuffix(a.FilePath, fileOperationExtensions)
	default:
		return false
	}
}

func hasSuffix(path string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
