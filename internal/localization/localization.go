// Package localization holds the JSON message catalogs used for the texts the
// HTTP gateway returns to clients.
package localization

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"golang.org/x/text/language"
)

// DefaultLanguage is used when nothing better matches.
const DefaultLanguage = "en"

// Message keys used by the HTTP gateway.
const (
	KeySessionBanned     = "session.banned"
	KeySessionInvalid    = "session.invalid"
	KeyBadRequest        = "error.bad_request"
	KeyInternalError     = "error.internal"
	KeyReportReceived    = "report.received"
	KeyReportSelf        = "report.self"
	KeyReportNoTarget    = "report.no_target"
	KeyReportBadReason   = "report.invalid_reason"
	KeySessionBadDevice  = "session.invalid_device"
	KeySessionNotAllowed = "session.not_allowed"
)

// catalog maps message keys to text for one language.
type catalog map[string]string

// Localizer serves user-facing gateway messages (ban notices, report
// acknowledgements, error texts) in the client's language. Catalogs are
// loaded once and never modified afterwards.
type Localizer struct {
	catalogs map[string]catalog
	mu       sync.RWMutex
}

// NewLocalizer loads every <lang>.json catalog found in dir. Other files are
// skipped.
func NewLocalizer(dir string) (*Localizer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read locales dir %s", dir)
	}

	l := &Localizer{catalogs: make(map[string]catalog, len(entries))}
	for _, entry := range entries {
		lang, ok := strings.CutSuffix(entry.Name(), ".json")
		if entry.IsDir() || !ok {
			continue
		}
		cat, err := loadCatalog(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		l.catalogs[lang] = cat
	}
	return l, nil
}

func loadCatalog(path string) (catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", filepath.Base(path))
	}
	var cat catalog
	if err := jsoniter.Unmarshal(data, &cat); err != nil {
		return nil, errors.Wrapf(err, "parse catalog %s", filepath.Base(path))
	}
	return cat, nil
}

// GetString returns the text for key in lang, then in DefaultLanguage.
// An unknown key is returned as is so a missing translation stays visible.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, candidate := range lo.Uniq([]string{lang, DefaultLanguage}) {
		if text, ok := l.catalogs[candidate][key]; ok {
			return text
		}
	}
	return key
}

// Languages lists the loaded language codes, sorted.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	langs := lo.Keys(l.catalogs)
	sort.Strings(langs)
	return langs
}

// Resolve picks the loaded language that best fits an Accept-Language
// header ("uk-UA,uk;q=0.9,en;q=0.8"). Region subtags are ignored.
func (l *Localizer) Resolve(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		return DefaultLanguage
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tag := range tags {
		base, _ := tag.Base()
		if _, ok := l.catalogs[base.String()]; ok {
			return base.String()
		}
	}
	return DefaultLanguage
}
