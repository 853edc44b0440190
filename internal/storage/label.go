package storage

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

const DefaultLabelTemplate = `{{ .SlotName | upper }} - Lv {{ .PlayerLevel }}{{ with .CurrentUnitId }} - {{ . }}{{ end }} - {{ playtime .TotalPlayTime }}`

// Labeler renders a one-line description of a slot summary for save/load menus.
type Labeler struct {
	tmpl *template.Template
}

func NewLabeler(tmplStr string) (*Labeler, error) {
	if tmplStr == "" {
		tmplStr = DefaultLabelTemplate
	}

	funcs := sprig.TxtFuncMap()
	funcs["playtime"] = formatPlayTime

	tmpl, err := template.New("label").Funcs(funcs).Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("parsing label template: %w", err)
	}

	return &Labeler{tmpl: tmpl}, nil
}

func (l *Labeler) Label(s *SlotSummary) (string, error) {
	if s == nil {
		return "", nil
	}

	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("executing label template: %w", err)
	}
	return buf.String(), nil
}

func formatPlayTime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
